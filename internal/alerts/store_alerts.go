package alerts

import (
	"context"
	"errors"
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

// ErrAlreadyResolved means another actor acknowledged the alert first.
var ErrAlreadyResolved = errors.New("alert already resolved")

type AlertStore struct {
	Client    *dynamodb.Client
	TableName string
}

// NewAlertStore initializes the alert store
func NewAlertStore() (*AlertStore, error) {
	tableName := os.Getenv("DYNAMODB_ALERTS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_ALERTS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &AlertStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

func (store *AlertStore) SaveAlert(ctx context.Context, alert models.Alert) error {
	if alert.ExpiresAt == 0 {
		alert.ExpiresAt = time.Now().Add(30 * 24 * time.Hour).Unix()
	}

	if alert.Resolution == "" {
		alert.Resolution = models.ResolutionUnresolved
	}

	item, err := attributevalue.MarshalMap(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(store.TableName),
		Item:      item,
	}

	_, err = store.Client.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to store alert in dynamodb: %w", err)
	}

	return nil
}

func (store *AlertStore) GetAlertsBySeverity(ctx context.Context, severity string, limit int32) ([]models.Alert, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(store.TableName),
		IndexName:              aws.String("SeverityIndex"),
		KeyConditionExpression: aws.String("severity = :severity"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":severity": &types.AttributeValueMemberS{Value: severity},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(limit),
	}

	result, err := store.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts by severity: %w", err)
	}

	var alerts []models.Alert
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}

	return alerts, nil
}

// Acknowledge marks an alert resolved by a human action. Conditional so two
// reviewers acknowledging concurrently cannot clobber each other.
func (store *AlertStore) Acknowledge(ctx context.Context, deviceID string, timestamp int64) error {
	_, err := store.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(store.TableName),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: deviceID},
			"timestamp": &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
		},
		ConditionExpression: aws.String("resolution = :unresolved"),
		UpdateExpression:    aws.String("SET resolution = :acknowledged"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":unresolved":   &types.AttributeValueMemberS{Value: models.ResolutionUnresolved},
			":acknowledged": &types.AttributeValueMemberS{Value: models.ResolutionAcknowledged},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return nil
}
