// Package audit classifies storage resources against the encryption-at-rest
// policy. Policy: S3 buckets must default to aws:kms (any other algorithm,
// including AES256, is non-compliant) and DynamoDB tables must report SSE
// status ENABLED.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// RequiredAlgorithm is the only bucket default encryption considered
// compliant
const RequiredAlgorithm = s3types.ServerSideEncryptionAwsKms

// errorCodeNoEncryptionConfig is what S3 returns for buckets with no
// encryption configuration at all. Not modeled as a typed error in the SDK,
// so it is matched by code.
const errorCodeNoEncryptionConfig = "ServerSideEncryptionConfigurationNotFoundError"

// ResourceType identifies which kind of resource an issue refers to
type ResourceType string

const (
	ResourceBucket ResourceType = "bucket"
	ResourceTable  ResourceType = "table"
)

// Issue is one detected deviation from the encryption policy. Issues live
// only for the duration of a scan; they are never persisted.
type Issue struct {
	Resource ResourceType
	Name     string
	Reason   string
}

// String renders the issue as one human-readable alert line
func (i Issue) String() string {
	if i.Resource == ResourceTable {
		return fmt.Sprintf("DynamoDB Table '%s' is not encrypted.", i.Name)
	}
	return fmt.Sprintf("S3 Bucket '%s' %s", i.Name, i.Reason)
}

// S3API is the slice of the S3 client the auditor needs
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
}

// DynamoDBAPI is the slice of the DynamoDB client the auditor needs
type DynamoDBAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Auditor scans all buckets and tables for encryption compliance
type Auditor struct {
	s3Client  S3API
	ddbClient DynamoDBAPI
}

// New creates a new Auditor instance
func New(s3Client S3API, ddbClient DynamoDBAPI) *Auditor {
	return &Auditor{
		s3Client:  s3Client,
		ddbClient: ddbClient,
	}
}

// Run checks every bucket and every table, returning all issues in a
// deterministic order: buckets first, then tables, each in enumeration
// order. Failure to inspect one resource never aborts the rest; failure to
// enumerate resources at all does.
func (a *Auditor) Run(ctx context.Context) ([]Issue, error) {
	issues, err := a.CheckBuckets(ctx)
	if err != nil {
		return nil, err
	}

	tableIssues, err := a.CheckTables(ctx)
	if err != nil {
		return nil, err
	}

	return append(issues, tableIssues...), nil
}

// CheckBuckets classifies every S3 bucket against the encryption policy
func (a *Auditor) CheckBuckets(ctx context.Context) ([]Issue, error) {
	logger := zerolog.Ctx(ctx)

	result, err := a.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	logger.Info().Int("count", len(result.Buckets)).Msg("Checking S3 buckets for encryption compliance")

	var issues []Issue
	for _, bucket := range result.Buckets {
		name := aws.ToString(bucket.Name)

		issue, err := a.classifyBucket(ctx, name)
		if err != nil {
			// Transient access failures are isolated: log and move on
			logger.Error().Err(err).Str("bucket", name).Msg("Error checking bucket encryption")
			continue
		}

		if issue != nil {
			logger.Warn().Str("bucket", name).Str("reason", issue.Reason).Msg("Bucket is not compliant")
			issues = append(issues, *issue)
		} else {
			logger.Info().Str("bucket", name).Msg("Bucket is compliant")
		}
	}

	return issues, nil
}

// classifyBucket inspects one bucket's default encryption. Returns nil when
// the bucket is compliant.
func (a *Auditor) classifyBucket(ctx context.Context, name string) (*Issue, error) {
	encryption, err := a.s3Client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == errorCodeNoEncryptionConfig {
			return &Issue{
				Resource: ResourceBucket,
				Name:     name,
				Reason:   "has no encryption configuration at all.",
			}, nil
		}
		return nil, err
	}

	algorithm := defaultAlgorithm(encryption.ServerSideEncryptionConfiguration)
	if algorithm != RequiredAlgorithm {
		return &Issue{
			Resource: ResourceBucket,
			Name:     name,
			Reason:   fmt.Sprintf("is not encrypted with a KMS key (uses default %s encryption).", algorithm),
		}, nil
	}

	return nil, nil
}

// defaultAlgorithm extracts the default SSE algorithm from the first rule
func defaultAlgorithm(cfg *s3types.ServerSideEncryptionConfiguration) s3types.ServerSideEncryption {
	if cfg == nil || len(cfg.Rules) == 0 {
		return ""
	}
	byDefault := cfg.Rules[0].ApplyServerSideEncryptionByDefault
	if byDefault == nil {
		return ""
	}
	return byDefault.SSEAlgorithm
}

// CheckTables classifies every DynamoDB table against the encryption policy
func (a *Auditor) CheckTables(ctx context.Context) ([]Issue, error) {
	logger := zerolog.Ctx(ctx)

	result, err := a.ddbClient.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	logger.Info().Int("count", len(result.TableNames)).Msg("Checking DynamoDB tables for encryption compliance")

	var issues []Issue
	for _, name := range result.TableNames {
		desc, err := a.ddbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		})
		if err != nil {
			logger.Error().Err(err).Str("table", name).Msg("Error checking table encryption")
			continue
		}

		if !tableEncrypted(desc.Table) {
			logger.Warn().Str("table", name).Msg("Table is not encrypted")
			issues = append(issues, Issue{Resource: ResourceTable, Name: name})
		} else {
			logger.Info().Str("table", name).Msg("Table is encrypted")
		}
	}

	return issues, nil
}

// tableEncrypted reports whether a table's SSE status is ENABLED
func tableEncrypted(table *ddbtypes.TableDescription) bool {
	if table == nil || table.SSEDescription == nil {
		return false
	}
	return table.SSEDescription.Status == ddbtypes.SSEStatusEnabled
}
