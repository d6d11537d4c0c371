package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

const (
	dynamoBatchLimit = 25 // DynamoDB BatchWriteItem hard limit
	maxWriteRetries  = 3  // retries for unprocessed items
)

type ReadingStore struct {
	Client    *dynamodb.Client
	TableName string
}

// NewReadingStore initializes the store using the shared db.Client
func NewReadingStore() (*ReadingStore, error) {
	tableName := os.Getenv("DYNAMODB_READINGS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_READINGS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &ReadingStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

func (store *ReadingStore) SaveReading(ctx context.Context, reading models.Reading) error {
	if reading.ExpiresAt == 0 {
		reading.ExpiresAt = time.Now().Add(90 * 24 * time.Hour).Unix()
	}

	item, err := attributevalue.MarshalMap(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	_, err = store.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(store.TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store reading in dynamodb: %w", err)
	}

	return nil
}

// SaveReadingBatch stores a wake-window packet of readings in chunks of 25
// (DynamoDB hard limit).
func (store *ReadingStore) SaveReadingBatch(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	defaultExpiry := time.Now().Add(90 * 24 * time.Hour).Unix()

	for i := 0; i < len(readings); i += dynamoBatchLimit {
		end := i + dynamoBatchLimit
		if end > len(readings) {
			end = len(readings)
		}

		var writeRequests []types.WriteRequest
		for _, reading := range readings[i:end] {
			if reading.ExpiresAt == 0 {
				reading.ExpiresAt = defaultExpiry
			}

			item, err := attributevalue.MarshalMap(reading)
			if err != nil {
				return fmt.Errorf("failed to marshal batch item: %w", err)
			}

			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := store.writeBatchWithRetry(ctx, writeRequests); err != nil {
			return err
		}
	}

	return nil
}

// writeBatchWithRetry writes a single chunk and retries any UnprocessedItems
func (store *ReadingStore) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := requests

	for attempt := 0; attempt <= maxWriteRetries; attempt++ {
		// Exponential backoff on retries (100ms, 200ms, 400ms)
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		output, err := store.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				store.TableName: pending,
			},
		})
		if err != nil {
			return fmt.Errorf("batch write attempt %d failed: %w", attempt+1, err)
		}

		// Unprocessed items mean DynamoDB throttled part of the chunk.
		unprocessed := output.UnprocessedItems[store.TableName]
		if len(unprocessed) == 0 {
			return nil
		}

		pending = unprocessed
	}

	return fmt.Errorf("batch write: %d items still unprocessed after %d retries", len(pending), maxWriteRetries)
}

// PreviousInSession returns the most recent reading in a session strictly
// before the given timestamp, or nil when this is the session's first.
func (store *ReadingStore) PreviousInSession(ctx context.Context, sessionID string, before int64) (*models.Reading, error) {
	out, err := store.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(store.TableName),
		IndexName:              aws.String("SessionIndex"),
		KeyConditionExpression: aws.String("session_id = :session_id AND #ts < :before"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":session_id": &types.AttributeValueMemberS{Value: sessionID},
			":before":     &types.AttributeValueMemberN{Value: strconv.FormatInt(before, 10)},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query previous reading: %w", err)
	}

	if len(out.Items) == 0 {
		return nil, nil
	}

	var reading models.Reading
	if err := attributevalue.UnmarshalMap(out.Items[0], &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}

// UpdateScore patches one metric on an existing reading when a derived score
// arrives from the image-analysis pipeline.
func (store *ReadingStore) UpdateScore(ctx context.Context, deviceID string, timestamp int64, metric string, value float64) error {
	_, err := store.Client.UpdateItem(ctx, scoreUpdateInput(store.TableName, deviceID, timestamp, metric, value))
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}

	return nil
}

// scoreUpdateInput builds the patch expression. Both path segments are
// aliased: "metrics" is on DynamoDB's reserved-word list and the metric name
// is caller-supplied.
func scoreUpdateInput(table, deviceID string, timestamp int64, metric string, value float64) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: deviceID},
			"timestamp": &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
		},
		ConditionExpression: aws.String("attribute_exists(device_id)"),
		UpdateExpression:    aws.String("SET #metrics.#metric = :value"),
		ExpressionAttributeNames: map[string]string{
			"#metrics": "metrics",
			"#metric":  metric,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberN{Value: strconv.FormatFloat(value, 'f', -1, 64)},
		},
	}
}

// GetReading loads one reading by its key, nil when it has expired or never
// existed.
func (store *ReadingStore) GetReading(ctx context.Context, deviceID string, timestamp int64) (*models.Reading, error) {
	out, err := store.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(store.TableName),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: deviceID},
			"timestamp": &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}

	if out.Item == nil {
		return nil, nil
	}

	var reading models.Reading
	if err := attributevalue.UnmarshalMap(out.Item, &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}
