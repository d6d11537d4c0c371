package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

// InAppChannel writes a notification row the dashboard reads.
type InAppChannel struct {
	Client    *dynamodb.Client
	TableName string
}

type inAppNotification struct {
	NotificationID string `dynamodbav:"notification_id"`
	ReviewerID     string `dynamodbav:"reviewer_id"`
	EventID        string `dynamodbav:"event_id"`
	Subject        string `dynamodbav:"subject"`
	Body           string `dynamodbav:"body"`
	Read           bool   `dynamodbav:"read"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	ExpiresAt      int64  `dynamodbav:"expires_at"`
}

func NewInAppChannel() (*InAppChannel, error) {
	tableName := os.Getenv("DYNAMODB_NOTIFICATIONS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_NOTIFICATIONS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &InAppChannel{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

func (c *InAppChannel) Name() string { return ChannelInApp }

func (c *InAppChannel) Send(ctx context.Context, reviewer models.Reviewer, msg Message) error {
	now := time.Now()
	item, err := attributevalue.MarshalMap(inAppNotification{
		NotificationID: uuid.NewString(),
		ReviewerID:     reviewer.ReviewerID,
		EventID:        msg.EventID,
		Subject:        msg.Subject,
		Body:           msg.BodyText,
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(90 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = c.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	return nil
}
