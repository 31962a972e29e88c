package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSFN struct {
	inputs []*sfn.StartExecutionInput
	err    error
}

func (f *fakeSFN) StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sfn.StartExecutionOutput{
		ExecutionArn: aws.String("arn:aws:states:eu-central-1:123456789012:execution:upload-pipeline:test-run"),
	}, nil
}

func TestStartExecution(t *testing.T) {
	fake := &fakeSFN{}
	o := New(fake, "arn:aws:states:eu-central-1:123456789012:stateMachine:upload-pipeline")

	arn, err := o.StartExecution(context.Background(), WorkflowInput{
		Bucket:    "uploads-bucket",
		Key:       "reports/q1.csv",
		Timestamp: "2026-08-31T10:00:00Z",
		EventTime: "2026-08-31T09:59:58Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:states:eu-central-1:123456789012:execution:upload-pipeline:test-run", arn)

	require.Len(t, fake.inputs, 1)
	got := fake.inputs[0]
	assert.Equal(t, "arn:aws:states:eu-central-1:123456789012:stateMachine:upload-pipeline", aws.ToString(got.StateMachineArn))

	// The marshalled input is the wire contract the writer depends on
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(got.Input)), &payload))
	assert.Equal(t, "uploads-bucket", payload["bucket"])
	assert.Equal(t, "reports/q1.csv", payload["key"])
	assert.Equal(t, "2026-08-31T10:00:00Z", payload["timestamp"])
	assert.Equal(t, "2026-08-31T09:59:58Z", payload["event_time"])
}

func TestStartExecution_Error(t *testing.T) {
	fake := &fakeSFN{err: assert.AnError}
	o := New(fake, "arn:aws:states:eu-central-1:123456789012:stateMachine:upload-pipeline")

	_, err := o.StartExecution(context.Background(), WorkflowInput{Bucket: "b", Key: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecutionName(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		wantPrefix string
	}{
		{name: "plain bucket", bucket: "uploads", wantPrefix: "uploads-"},
		{name: "dots replaced", bucket: "my.uploads.bucket", wantPrefix: "my-uploads-bucket-"},
		{name: "hyphens kept", bucket: "team-uploads", wantPrefix: "team-uploads-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := executionName(tt.bucket)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("executionName(%q) = %q, want prefix %q", tt.bucket, got, tt.wantPrefix)
			}
			if len(got) > 80 {
				t.Errorf("executionName(%q) is %d characters, max 80", tt.bucket, len(got))
			}
		})
	}
}

func TestExecutionName_Unique(t *testing.T) {
	a := executionName("uploads")
	b := executionName("uploads")
	if a == b {
		t.Errorf("expected unique execution names, got %q twice", a)
	}
}
