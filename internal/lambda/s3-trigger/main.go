package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/savaki/upload-compliance/internal/di"
	"github.com/savaki/upload-compliance/internal/orchestrator"
	"github.com/savaki/upload-compliance/internal/validation"
	"github.com/urfave/cli/v2"
)

// executionStarter is the slice of the orchestrator this handler needs
type executionStarter interface {
	StartExecution(ctx context.Context, input orchestrator.WorkflowInput) (string, error)
}

type Handler struct {
	orchestrator executionStarter
}

func NewHandler(orch executionStarter) *Handler {
	return &Handler{
		orchestrator: orch,
	}
}

// Response is the result payload returned to the event source. The status
// is 200 even when records fail validation: a permanently-invalid key
// would otherwise be redelivered forever.
type Response struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Executions []string `json:"executions"`
}

// HandleS3Event validates each uploaded object's key and starts one
// workflow execution per valid record. Invalid keys are skipped, not
// fatal; orchestrator failures propagate so the event source retries.
func (h *Handler) HandleS3Event(ctx context.Context, event events.S3Event) (Response, error) {
	logger := zerolog.Ctx(ctx)

	executions := make([]string, 0, len(event.Records))
	skipped := 0

	for i := range event.Records {
		record := &event.Records[i]
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		logger.Info().Str("bucket", bucket).Str("key", key).Msg("Processing uploaded file")

		if err := validation.ValidateObjectKey(key); err != nil {
			var invalid *validation.InvalidKeyError
			if errors.As(err, &invalid) {
				// User-data problem, never a system fault. Skip the
				// record; the rest of the batch is unaffected.
				logger.Error().
					Str("bucket", bucket).
					Str("key", key).
					Str("reason", string(invalid.Reason)).
					Msg("Validation error, record skipped")
				skipped++
				continue
			}
			return Response{}, err
		}

		input := orchestrator.WorkflowInput{
			Bucket:    bucket,
			Key:       key,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			EventTime: record.EventTime.UTC().Format(time.RFC3339),
		}

		executionArn, err := h.orchestrator.StartExecution(ctx, input)
		if err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to start workflow execution")
			return Response{}, err
		}

		logger.Info().Str("execution_arn", executionArn).Msg("Successfully started workflow execution")
		executions = append(executions, executionArn)
	}

	message := "Successfully triggered Step Functions"
	if len(executions) == 0 && skipped > 0 {
		message = "Validation failed, pipeline halted gracefully"
	}

	return Response{
		StatusCode: 200,
		Message:    message,
		Executions: executions,
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "s3-trigger").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = "dev"
	}

	container, err := di.New(env,
		di.WithProviders(
			di.ProvideOrchestrator,
		),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DI container")
		os.Exit(1)
	}

	handler := NewHandler(di.MustGet[*orchestrator.Orchestrator](container))

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, event events.S3Event) (Response, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleS3Event(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	app := &cli.App{
		Name:  "s3-trigger",
		Usage: "Simulate an S3 upload event to trigger the workflow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "S3 bucket name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "S3 object key (e.g., reports/q1.csv)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			event := events.S3Event{
				Records: []events.S3EventRecord{
					{
						EventTime: time.Now().UTC(),
						S3: events.S3Entity{
							Bucket: events.S3Bucket{
								Name: c.String("bucket"),
							},
							Object: events.S3Object{
								Key: c.String("key"),
							},
						},
					},
				},
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleS3Event(ctx, event)
			if err != nil {
				return err
			}

			logger.Info().
				Int("status", result.StatusCode).
				Strs("executions", result.Executions).
				Msg(result.Message)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
