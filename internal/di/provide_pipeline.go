package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/savaki/upload-compliance/internal/audit"
	"github.com/savaki/upload-compliance/internal/dao/metadatadao"
	"github.com/savaki/upload-compliance/internal/errors"
	"github.com/savaki/upload-compliance/internal/notify"
	"github.com/savaki/upload-compliance/internal/orchestrator"
	"github.com/savaki/upload-compliance/internal/services"
)

// ProvideMetadataDAO provides the DAO for the upload metadata table.
// The table name comes from configuration when set, otherwise it is
// derived from the environment.
func ProvideMetadataDAO(env string, client *dynamodb.Client, cfg *services.Config) *metadatadao.DAO {
	tableName := cfg.MetadataTable
	if tableName == "" {
		tableName = metadatadao.TableName(env)
	}
	return metadatadao.New(client, tableName)
}

// ProvideOrchestrator provides the Step Functions orchestrator for
// dispatching upload workflows
func ProvideOrchestrator(sfnClient *sfn.Client, cfg *services.Config) (*orchestrator.Orchestrator, error) {
	if cfg.StateMachineArn == "" {
		return nil, errors.ErrStateMachineARNRequired
	}
	return orchestrator.New(sfnClient, cfg.StateMachineArn), nil
}

// ProvideAuditor provides the encryption compliance auditor
func ProvideAuditor(s3Client *s3.Client, ddbClient *dynamodb.Client) *audit.Auditor {
	return audit.New(s3Client, ddbClient)
}

// ProvideNotifier provides the SNS alert notifier
func ProvideNotifier(snsClient *sns.Client, cfg *services.Config) (*notify.Notifier, error) {
	if cfg.AlertTopicArn == "" {
		return nil, errors.ErrTopicARNRequired
	}
	return notify.New(snsClient, cfg.AlertTopicArn), nil
}
