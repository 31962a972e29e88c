package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/savaki/upload-compliance/internal/services"
)

func ProvideContext() context.Context {
	return context.Background()
}

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

// ProvideDynamoDB provides a DynamoDB client, honoring the optional
// endpoint override for local execution
func ProvideDynamoDB(awsConfig aws.Config, cfg *services.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})
}

// ProvideS3Client provides an S3 client, honoring the optional endpoint override
func ProvideS3Client(awsConfig aws.Config, cfg *services.Config) *s3.Client {
	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
}

// ProvideSNSClient provides an SNS client, honoring the optional endpoint override
func ProvideSNSClient(awsConfig aws.Config, cfg *services.Config) *sns.Client {
	return sns.NewFromConfig(awsConfig, func(o *sns.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})
}

// ProvideStepFunctions provides a Step Functions client, honoring the
// optional endpoint override
func ProvideStepFunctions(awsConfig aws.Config, cfg *services.Config) *sfn.Client {
	return sfn.NewFromConfig(awsConfig, func(o *sfn.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})
}
