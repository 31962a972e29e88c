package di

import (
	"os"

	"github.com/rs/zerolog"
)

// ProvideLogger creates the zerolog.Logger shared by the pipeline stages
// (s3-trigger, metadata-writer, security-monitor). In Lambda (when
// AWS_LAMBDA_RUNTIME_API is set) it emits JSON for CloudWatch; in a
// terminal it pretty-prints. Each stage tags the logger with its own
// "lambda" field before use.
func ProvideLogger() zerolog.Logger {
	level := logLevel()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return zerolog.New(os.Stdout).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// logLevel resolves the log level from LOG_LEVEL, defaulting to info.
// Unparseable values fall back to info rather than failing startup.
func logLevel() zerolog.Level {
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			return level
		}
	}
	return zerolog.InfoLevel
}
