package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/segmentio/ksuid"
)

// WorkflowInput is the payload handed to the Step Functions state machine
// and, from there, to the metadata writer. Key has already passed
// validation by the time this struct is built; the writer re-validates
// anyway because the payload crosses a queue boundary.
type WorkflowInput struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Timestamp string `json:"timestamp"`  // Generated at dispatch time, RFC 3339 UTC
	EventTime string `json:"event_time"` // Copied through from the S3 event
}

// StartExecutionAPI is the slice of the Step Functions client the
// orchestrator needs. *sfn.Client satisfies it.
type StartExecutionAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// Orchestrator submits workflow executions for validated upload events
type Orchestrator struct {
	sfnClient       StartExecutionAPI
	stateMachineArn string
}

// New creates a new Orchestrator instance
func New(sfnClient StartExecutionAPI, stateMachineArn string) *Orchestrator {
	return &Orchestrator{
		sfnClient:       sfnClient,
		stateMachineArn: stateMachineArn,
	}
}

// StartExecution starts a Step Functions execution for one upload and
// returns the execution ARN
func (o *Orchestrator) StartExecution(ctx context.Context, input WorkflowInput) (string, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow input: %w", err)
	}

	result, err := o.sfnClient.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(o.stateMachineArn),
		Name:            aws.String(executionName(input.Bucket)),
		Input:           aws.String(string(inputJSON)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start step function execution: %w", err)
	}

	return aws.ToString(result.ExecutionArn), nil
}

// executionName builds a unique execution name from the bucket and a fresh
// KSUID. Object keys are not used here: execution names only allow a narrow
// character set and keys may contain slashes.
func executionName(bucket string) string {
	name := fmt.Sprintf("%s-%s", sanitize(bucket), ksuid.New().String())
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

// sanitize replaces characters Step Functions rejects in execution names
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
