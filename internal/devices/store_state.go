package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

var ErrDeviceNotFound = errors.New("device not found")

type DeviceStore struct {
	Client       *dynamodb.Client
	TableName    string
	HistoryTable string
}

func NewDeviceStore() (*DeviceStore, error) {
	tableName := os.Getenv("DYNAMODB_DEVICES_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_DEVICES_TABLE environment variable is not set")
	}

	historyTable := os.Getenv("DYNAMODB_DEVICE_HISTORY_TABLE")
	if historyTable == "" {
		return nil, fmt.Errorf("DYNAMODB_DEVICE_HISTORY_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &DeviceStore{
		Client:       db.Client,
		TableName:    tableName,
		HistoryTable: historyTable,
	}, nil
}

func (s *DeviceStore) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: deviceID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	var device models.Device
	if err := attributevalue.UnmarshalMap(out.Item, &device); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device: %w", err)
	}

	return &device, nil
}

// UpdateHealthFromReading opportunistically refreshes the health summary and
// last-seen markers. The condition keeps a stale sweep from clobbering a
// newer reading's update.
func (s *DeviceStore) UpdateHealthFromReading(ctx context.Context, reading models.Reading) error {
	battery, hasBattery := reading.Metrics["battery_pct"]
	signal, hasSignal := reading.Metrics["signal_dbm"]
	if !hasBattery && !hasSignal {
		return nil
	}
	if !hasBattery {
		battery = 100
	}
	if !hasSignal {
		signal = 0
	}

	now := time.Now().Unix()
	health := SummarizeHealth(battery, signal)

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: reading.DeviceID},
		},
		ConditionExpression: aws.String(
			"attribute_not_exists(last_seen_at) OR last_seen_at <= :last_seen",
		),
		UpdateExpression: aws.String(`
			SET
				#status = :status,
				health = :health,
				battery_pct = :battery,
				signal_dbm = :signal,
				last_seen_at = :last_seen,
				updated_at = :updated_at
		`),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: StatusOnline},
			":health":     &types.AttributeValueMemberS{Value: health},
			":battery":    &types.AttributeValueMemberN{Value: fmt.Sprint(battery)},
			":signal":     &types.AttributeValueMemberN{Value: fmt.Sprint(signal)},
			":last_seen":  &types.AttributeValueMemberN{Value: fmt.Sprint(reading.Timestamp)},
			":updated_at": &types.AttributeValueMemberN{Value: fmt.Sprint(now)},
		},
	}

	_, err := s.Client.UpdateItem(ctx, input)
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			// A newer reading already updated the row.
			return nil
		}
		return fmt.Errorf("failed to update device health: %w", err)
	}

	return nil
}

// AppendHistory writes an audit entry; history rows are never updated.
func (s *DeviceStore) AppendHistory(ctx context.Context, entry models.DeviceHistoryEntry) error {
	if entry.ExpiresAt == 0 {
		entry.ExpiresAt = time.Now().Add(90 * 24 * time.Hour).Unix()
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.HistoryTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store history entry: %w", err)
	}

	return nil
}
