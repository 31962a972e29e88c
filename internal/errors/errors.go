package errors

import "errors"

var (
	ErrStateMachineARNRequired = errors.New("STATE_MACHINE_ARN environment variable is required")
	ErrTopicARNRequired        = errors.New("SNS_TOPIC_ARN environment variable is required")
)
