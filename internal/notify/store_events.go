package notify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

// EventStore persists review events keyed by trigger id, which is what makes
// event creation idempotent: the same trigger can never produce two events.
type EventStore struct {
	Client    *dynamodb.Client
	TableName string
}

func NewEventStore() (*EventStore, error) {
	tableName := os.Getenv("DYNAMODB_EVENTS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_EVENTS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &EventStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

// EnsureEvent creates the event if its trigger has never been seen, else
// returns the stored one (including its delivery log, so re-dispatch can
// skip channels already marked sent).
func (s *EventStore) EnsureEvent(ctx context.Context, ev models.ReviewEvent) (*models.ReviewEvent, error) {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(trigger_id)"),
	})
	if err == nil {
		return &ev, nil
	}

	var conditionErr *types.ConditionalCheckFailedException
	if !errors.As(err, &conditionErr) {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	// Already created for this trigger; load the existing record.
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"trigger_id": &types.AttributeValueMemberS{Value: ev.TriggerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing event: %w", err)
	}

	var existing models.ReviewEvent
	if err := attributevalue.UnmarshalMap(out.Item, &existing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &existing, nil
}

// AppendDelivery adds one channel outcome to the event's delivery log.
// Additive only; earlier attempts are never rewritten.
func (s *EventStore) AppendDelivery(ctx context.Context, triggerID string, d models.Delivery) error {
	entry, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"trigger_id": &types.AttributeValueMemberS{Value: triggerID},
		},
		UpdateExpression: aws.String(
			"SET deliveries = list_append(if_not_exists(deliveries, :empty), :entry)",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":entry": &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: entry}}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to append delivery: %w", err)
	}

	return nil
}

// MarkUndeliverable flags an event with no resolvable recipients. The event
// is retained for manual inspection, never dropped.
func (s *EventStore) MarkUndeliverable(ctx context.Context, triggerID string) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"trigger_id": &types.AttributeValueMemberS{Value: triggerID},
		},
		UpdateExpression: aws.String("SET undeliverable = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark event undeliverable: %w", err)
	}

	return nil
}
