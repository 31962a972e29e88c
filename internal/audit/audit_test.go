package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	buckets    []string
	encryption map[string]s3types.ServerSideEncryption // algorithm per bucket
	errs       map[string]error                        // per-bucket GetBucketEncryption errors
	listErr    error
}

func (f *fakeS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3.ListBucketsOutput{}
	for _, name := range f.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *fakeS3) GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	name := aws.ToString(params.Bucket)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return &s3.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{
				{
					ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
						SSEAlgorithm: f.encryption[name],
					},
				},
			},
		},
	}, nil
}

type fakeDynamoDB struct {
	tables  []string
	sse     map[string]*ddbtypes.SSEDescription
	errs    map[string]error
	listErr error
}

func (f *fakeDynamoDB) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &dynamodb.ListTablesOutput{TableNames: f.tables}, nil
}

func (f *fakeDynamoDB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	name := aws.ToString(params.TableName)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{
			TableName:      aws.String(name),
			SSEDescription: f.sse[name],
		},
	}, nil
}

func noEncryptionConfigError() error {
	return &smithy.GenericAPIError{
		Code:    "ServerSideEncryptionConfigurationNotFoundError",
		Message: "The server side encryption configuration was not found",
	}
}

func TestCheckBuckets_Classification(t *testing.T) {
	tests := []struct {
		name       string
		algorithm  s3types.ServerSideEncryption
		encErr     error
		wantIssues int
		wantReason string
	}{
		{
			name:       "kms bucket is compliant",
			algorithm:  s3types.ServerSideEncryptionAwsKms,
			wantIssues: 0,
		},
		{
			name:       "aes256 bucket is non-compliant despite being encrypted",
			algorithm:  s3types.ServerSideEncryptionAes256,
			wantIssues: 1,
			wantReason: "is not encrypted with a KMS key (uses default AES256 encryption).",
		},
		{
			name:       "missing encryption configuration",
			encErr:     noEncryptionConfigError(),
			wantIssues: 1,
			wantReason: "has no encryption configuration at all.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeS3{
				buckets:    []string{"data-bucket"},
				encryption: map[string]s3types.ServerSideEncryption{"data-bucket": tt.algorithm},
			}
			if tt.encErr != nil {
				fake.errs = map[string]error{"data-bucket": tt.encErr}
			}

			auditor := New(fake, &fakeDynamoDB{})
			issues, err := auditor.CheckBuckets(context.Background())
			require.NoError(t, err)
			require.Len(t, issues, tt.wantIssues)

			if tt.wantIssues > 0 {
				assert.Equal(t, ResourceBucket, issues[0].Resource)
				assert.Equal(t, "data-bucket", issues[0].Name)
				assert.Equal(t, tt.wantReason, issues[0].Reason)
			}
		})
	}
}

func TestCheckBuckets_IsolatesPerBucketFailures(t *testing.T) {
	fake := &fakeS3{
		buckets: []string{"ok-bucket", "broken-bucket", "bad-bucket"},
		encryption: map[string]s3types.ServerSideEncryption{
			"ok-bucket":  s3types.ServerSideEncryptionAwsKms,
			"bad-bucket": s3types.ServerSideEncryptionAes256,
		},
		errs: map[string]error{
			"broken-bucket": &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
		},
	}

	auditor := New(fake, &fakeDynamoDB{})
	issues, err := auditor.CheckBuckets(context.Background())
	require.NoError(t, err, "a single uninspectable bucket must not fail the scan")

	// The broken bucket is skipped; the bad one is still reported
	require.Len(t, issues, 1)
	assert.Equal(t, "bad-bucket", issues[0].Name)
}

func TestCheckBuckets_ListFailurePropagates(t *testing.T) {
	auditor := New(&fakeS3{listErr: errors.New("throttled")}, &fakeDynamoDB{})

	_, err := auditor.CheckBuckets(context.Background())
	require.Error(t, err)
}

func TestCheckTables_Classification(t *testing.T) {
	tests := []struct {
		name       string
		sse        *ddbtypes.SSEDescription
		wantIssues int
	}{
		{
			name:       "enabled table is compliant",
			sse:        &ddbtypes.SSEDescription{Status: ddbtypes.SSEStatusEnabled},
			wantIssues: 0,
		},
		{
			name:       "missing SSE description",
			sse:        nil,
			wantIssues: 1,
		},
		{
			name:       "disabled status",
			sse:        &ddbtypes.SSEDescription{Status: ddbtypes.SSEStatusDisabled},
			wantIssues: 1,
		},
		{
			name:       "updating status is not enabled",
			sse:        &ddbtypes.SSEDescription{Status: ddbtypes.SSEStatusUpdating},
			wantIssues: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDynamoDB{
				tables: []string{"metadata-table"},
				sse:    map[string]*ddbtypes.SSEDescription{"metadata-table": tt.sse},
			}

			auditor := New(&fakeS3{}, fake)
			issues, err := auditor.CheckTables(context.Background())
			require.NoError(t, err)
			require.Len(t, issues, tt.wantIssues)

			if tt.wantIssues > 0 {
				assert.Equal(t, ResourceTable, issues[0].Resource)
				assert.Equal(t, "metadata-table", issues[0].Name)
			}
		})
	}
}

func TestCheckTables_IsolatesPerTableFailures(t *testing.T) {
	fake := &fakeDynamoDB{
		tables: []string{"broken-table", "plain-table"},
		errs: map[string]error{
			"broken-table": &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
		},
	}

	auditor := New(&fakeS3{}, fake)
	issues, err := auditor.CheckTables(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "plain-table", issues[0].Name)
}

func TestRun_OrderIsDeterministic(t *testing.T) {
	s3Fake := &fakeS3{
		buckets: []string{"alpha", "beta"},
		encryption: map[string]s3types.ServerSideEncryption{
			"alpha": s3types.ServerSideEncryptionAes256,
			"beta":  s3types.ServerSideEncryptionAes256,
		},
	}
	ddbFake := &fakeDynamoDB{tables: []string{"first", "second"}}

	auditor := New(s3Fake, ddbFake)
	issues, err := auditor.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, issue := range issues {
		names = append(names, issue.Name)
	}
	assert.Equal(t, []string{"alpha", "beta", "first", "second"}, names,
		"buckets come first, then tables, each in enumeration order")
}

func TestRun_ListTablesFailurePropagates(t *testing.T) {
	auditor := New(&fakeS3{}, &fakeDynamoDB{listErr: errors.New("unavailable")})

	_, err := auditor.Run(context.Background())
	require.Error(t, err)
}

func TestIssue_String(t *testing.T) {
	tests := []struct {
		name  string
		issue Issue
		want  string
	}{
		{
			name: "bucket with wrong algorithm",
			issue: Issue{
				Resource: ResourceBucket,
				Name:     "data-bucket",
				Reason:   "is not encrypted with a KMS key (uses default AES256 encryption).",
			},
			want: "S3 Bucket 'data-bucket' is not encrypted with a KMS key (uses default AES256 encryption).",
		},
		{
			name: "bucket with no configuration",
			issue: Issue{
				Resource: ResourceBucket,
				Name:     "legacy-bucket",
				Reason:   "has no encryption configuration at all.",
			},
			want: "S3 Bucket 'legacy-bucket' has no encryption configuration at all.",
		},
		{
			name:  "table",
			issue: Issue{Resource: ResourceTable, Name: "metadata"},
			want:  "DynamoDB Table 'metadata' is not encrypted.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.issue.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
