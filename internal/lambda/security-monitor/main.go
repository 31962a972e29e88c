package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/savaki/gox/slicex"
	"github.com/savaki/upload-compliance/internal/audit"
	"github.com/savaki/upload-compliance/internal/di"
	"github.com/savaki/upload-compliance/internal/notify"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// scanner runs one full compliance scan
type scanner interface {
	Run(ctx context.Context) ([]audit.Issue, error)
}

// alerter publishes scan results
type alerter interface {
	SendComplianceAlert(ctx context.Context, issues []string) error
	NotifyScanFailure(ctx context.Context, scanErr error)
}

type Handler struct {
	auditor  scanner
	notifier alerter
}

func NewHandler(auditor scanner, notifier alerter) *Handler {
	return &Handler{
		auditor:  auditor,
		notifier: notifier,
	}
}

// Response summarizes one scan run
type Response struct {
	StatusCode  int      `json:"statusCode"`
	IssuesFound int      `json:"issues_found"`
	Issues      []string `json:"issues"`
	Message     string   `json:"message"`
}

// HandleScheduledEvent scans every bucket and table for encryption
// compliance and sends one alert when anything is out of policy. Any
// failure in the run, whether the scan itself or the alert publish,
// triggers a best-effort failure alert before the original error
// propagates.
func (h *Handler) HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
	logger := zerolog.Ctx(ctx)
	runID := ksuid.New().String()

	logger.Info().Str("run_id", runID).Msg("Starting security scan")

	issues, err := h.auditor.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("run_id", runID).Msg("Security scan failed")
		h.notifier.NotifyScanFailure(ctx, err)
		return Response{}, err
	}

	lines := slicex.Map(issues, func(issue audit.Issue) string { return issue.String() })

	if len(lines) > 0 {
		logger.Warn().Int("issues", len(lines)).Str("run_id", runID).Msg("Found security issues")
		if err := h.notifier.SendComplianceAlert(ctx, lines); err != nil {
			logger.Error().Err(err).Str("run_id", runID).Msg("Failed to send compliance alert")
			h.notifier.NotifyScanFailure(ctx, err)
			return Response{}, err
		}
	} else {
		logger.Info().Str("run_id", runID).Msg("Security scan completed, no issues found")
	}

	return Response{
		StatusCode:  200,
		IssuesFound: len(lines),
		Issues:      lines,
		Message:     "Security scan completed",
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "security-monitor").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env,
		di.WithProviders(
			di.ProvideAuditor,
			di.ProvideNotifier,
		),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	handler := NewHandler(
		di.MustGet[*audit.Auditor](container),
		di.MustGet[*notify.Notifier](container),
	)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		wrappedHandler := func(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleScheduledEvent(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "security-monitor",
		Usage: "Scan S3 buckets and DynamoDB tables for encryption compliance",
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleScheduledEvent(ctx, events.CloudWatchEvent{})
			if err != nil {
				return err
			}

			logger.Info().
				Int("status", result.StatusCode).
				Int("issues_found", result.IssuesFound).
				Msg(result.Message)
			for _, issue := range result.Issues {
				logger.Warn().Msg(issue)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
