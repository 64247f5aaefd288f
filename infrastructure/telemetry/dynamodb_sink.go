package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// PutItemAPI is the subset of the DynamoDB client the sink needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ddbQueryItem is the stored shape of one record.
type ddbQueryItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	QueryName   string  `dynamodbav:"QueryName"`
	Statement   string  `dynamodbav:"Statement"`
	ElapsedMs   float64 `dynamodbav:"ElapsedMs"`
	Outcome     string  `dynamodbav:"Outcome"`
	Attempts    int     `dynamodbav:"Attempts"`
	ReadOnly    bool    `dynamodbav:"ReadOnly"`
	Slow        bool    `dynamodbav:"Slow"`
	Params      string  `dynamodbav:"Params,omitempty"`
	Error       string  `dynamodbav:"Error,omitempty"`
	RequestPath string  `dynamodbav:"RequestPath,omitempty"`
	RequestID   string  `dynamodbav:"RequestID,omitempty"`
	Timestamp   string  `dynamodbav:"Timestamp"`
	TTL         int64   `dynamodbav:"TTL"`
}

// DynamoDBSink stores records in a DynamoDB table keyed by query name and
// time, with a TTL attribute for expiry.
type DynamoDBSink struct {
	client    PutItemAPI
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewDynamoDBSink creates a sink writing to tableName.
func NewDynamoDBSink(client PutItemAPI, tableName string, ttl time.Duration, logger *zap.Logger) (*DynamoDBSink, error) {
	if client == nil {
		return nil, errors.New("dynamodb sink: client is required")
	}
	if tableName == "" {
		return nil, errors.New("dynamodb sink: table name is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoDBSink{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger.Named("dynamodb_sink"),
	}, nil
}

// Write stores one record.
func (s *DynamoDBSink) Write(ctx context.Context, rec QueryRecord) error {
	item := ddbQueryItem{
		PK:          "QUERY#" + rec.Name,
		SK:          fmt.Sprintf("%s#%s", rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.ID),
		QueryName:   rec.Name,
		Statement:   rec.Statement,
		ElapsedMs:   rec.ElapsedMs,
		Outcome:     rec.Outcome,
		Attempts:    rec.Attempts,
		ReadOnly:    rec.ReadOnly,
		Slow:        rec.Slow,
		Error:       rec.Error,
		RequestPath: rec.RequestPath,
		RequestID:   rec.RequestID,
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		TTL:         rec.Timestamp.Add(s.ttl).Unix(),
	}
	if len(rec.Params) > 0 {
		raw, err := json.Marshal(rec.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		item.Params = string(raw)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal query record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			s.logger.Warn("DynamoDB rejected query record",
				zap.String("code", ae.ErrorCode()),
				zap.String("message", ae.ErrorMessage()),
				zap.String("table", s.tableName),
			)
		}
		return fmt.Errorf("put query record: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *DynamoDBSink) Close() error {
	return nil
}
