package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/savaki/upload-compliance/internal/dao/metadatadao"
	"github.com/savaki/upload-compliance/internal/di"
	"github.com/savaki/upload-compliance/internal/validation"
	"github.com/urfave/cli/v2"
)

// metadataStore is the slice of the metadata DAO this handler needs
type metadataStore interface {
	Create(ctx context.Context, input metadatadao.CreateInput) (metadatadao.Record, error)
}

type Handler struct {
	store metadataStore
}

func NewHandler(store metadataStore) *Handler {
	return &Handler{
		store: store,
	}
}

// WriteInput is the workflow payload produced by the dispatch stage
type WriteInput struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Timestamp string `json:"timestamp,omitempty"`
	EventTime string `json:"event_time,omitempty"`
}

// Response reports the write outcome: 200 written, 409 duplicate
type Response struct {
	StatusCode int    `json:"statusCode"`
	Filename   string `json:"filename"`
	Timestamp  string `json:"timestamp"`
	Bucket     string `json:"bucket,omitempty"`
	Message    string `json:"message"`
}

// HandleWorkflowInput records one upload's metadata exactly once. The
// conditional insert in the DAO turns a retried event into a 409 instead
// of a second record. Unlike the dispatch stage, a validation failure
// here is surfaced: upstream already filtered, so a bad key at this point
// is a contract breach.
func (h *Handler) HandleWorkflowInput(ctx context.Context, input *WriteInput) (Response, error) {
	logger := zerolog.Ctx(ctx)

	if err := validation.ValidateObjectKey(input.Key); err != nil {
		logger.Error().Err(err).Str("key", input.Key).Msg("Validation error")
		return Response{}, fmt.Errorf("invalid filename: %w", err)
	}

	// Resolve the timestamp here so the duplicate response can report the
	// key that actually collided
	if input.Timestamp == "" {
		input.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	record, err := h.store.Create(ctx, metadatadao.CreateInput{
		Filename:        input.Key,
		UploadTimestamp: input.Timestamp,
		Bucket:          input.Bucket,
		EventTime:       input.EventTime,
	})
	if err != nil {
		if errors.Is(err, metadatadao.ErrDuplicateRecord) {
			logger.Warn().
				Str("filename", input.Key).
				Str("timestamp", input.Timestamp).
				Msg("Duplicate entry attempted")
			return Response{
				StatusCode: 409,
				Filename:   input.Key,
				Timestamp:  input.Timestamp,
				Message:    "Duplicate entry - item already exists",
			}, nil
		}
		return Response{}, fmt.Errorf("failed to write metadata record: %w", err)
	}

	logger.Info().
		Str("filename", record.Filename).
		Str("timestamp", record.UploadTimestamp).
		Str("bucket", record.Bucket).
		Msg("Successfully wrote metadata record")

	return Response{
		StatusCode: 200,
		Filename:   record.Filename,
		Timestamp:  record.UploadTimestamp,
		Bucket:     record.Bucket,
		Message:    "Successfully written to DynamoDB",
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "metadata-writer").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env,
		di.WithProviders(
			di.ProvideMetadataDAO,
		),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	handler := NewHandler(di.MustGet[*metadatadao.DAO](container))

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		wrappedHandler := func(ctx context.Context, input *WriteInput) (Response, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleWorkflowInput(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "metadata-writer",
		Usage: "Write upload metadata to DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "S3 bucket name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Uploaded object key",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "timestamp",
				Usage: "Upload timestamp (RFC 3339, defaults to now)",
			},
			&cli.StringFlag{
				Name:  "event-time",
				Usage: "Original S3 event time (defaults to the upload timestamp)",
			},
		},
		Action: func(c *cli.Context) error {
			input := &WriteInput{
				Bucket:    c.String("bucket"),
				Key:       c.String("key"),
				Timestamp: c.String("timestamp"),
				EventTime: c.String("event-time"),
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleWorkflowInput(ctx, input)
			if err != nil {
				return err
			}

			logger.Info().
				Int("status", result.StatusCode).
				Str("filename", result.Filename).
				Msg(result.Message)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
