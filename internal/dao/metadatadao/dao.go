// Package metadatadao stores one record per uploaded object, keyed by
// (Filename, UploadTimestamp). The conditional insert is the system's only
// idempotency mechanism: a retried event surfaces as ErrDuplicateRecord
// instead of a second record.
package metadatadao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/ddb/v2"
)

// ErrDuplicateRecord indicates a record with the same (Filename,
// UploadTimestamp) key already exists. Expected on retries; not a fault.
var ErrDuplicateRecord = errors.New("metadata record already exists")

// Record represents one upload's metadata in DynamoDB
type Record struct {
	Filename        string `ddb:"hash" dynamodbav:"Filename"`
	UploadTimestamp string `ddb:"range" dynamodbav:"UploadTimestamp"`
	Bucket          string `dynamodbav:"Bucket,omitempty"`
	EventTime       string `dynamodbav:"EventTime,omitempty"`
}

// CreateInput contains the fields needed to create a metadata record.
// UploadTimestamp defaults to now and EventTime defaults to the upload
// timestamp when left empty.
type CreateInput struct {
	Filename        string
	UploadTimestamp string
	Bucket          string
	EventTime       string
}

// TableName derives the metadata table name from the environment
func TableName(env string) string {
	return fmt.Sprintf("%s-upload-metadata", env)
}

// DAO provides data access operations for upload metadata records
type DAO struct {
	client    *dynamodb.Client
	table     *ddb.Table
	tableName string
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		client:    client,
		table:     table,
		tableName: tableName,
	}
}

// Create inserts a metadata record if and only if no record with the same
// (Filename, UploadTimestamp) key exists. The condition is evaluated
// atomically by DynamoDB, so two racing retries of the same event can
// never both succeed. Returns ErrDuplicateRecord when the key is taken.
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	record := newRecord(input)

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal metadata record: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(Filename) AND attribute_not_exists(UploadTimestamp)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return Record{}, fmt.Errorf("%w: %s at %s", ErrDuplicateRecord, record.Filename, record.UploadTimestamp)
		}
		return Record{}, fmt.Errorf("failed to create metadata record: %w", err)
	}

	return record, nil
}

// newRecord builds a Record from input, applying the default rules:
// UploadTimestamp falls back to now, EventTime falls back to the upload
// timestamp.
func newRecord(input CreateInput) Record {
	record := Record{
		Filename:        input.Filename,
		UploadTimestamp: input.UploadTimestamp,
		Bucket:          input.Bucket,
		EventTime:       input.EventTime,
	}
	if record.UploadTimestamp == "" {
		record.UploadTimestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if record.EventTime == "" {
		record.EventTime = record.UploadTimestamp
	}
	return record
}

// Find retrieves a metadata record by its composite key.
// Returns nil if not found.
func (d *DAO) Find(ctx context.Context, filename, uploadTimestamp string) (*Record, error) {
	var record Record

	err := d.table.Get(filename).
		Range(uploadTimestamp).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find metadata record: %w", err)
	}

	if record.Filename == "" && record.UploadTimestamp == "" {
		return nil, nil
	}

	return &record, nil
}
