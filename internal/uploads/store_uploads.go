package uploads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/BrainlyTree-Project/Backend/models"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
)

var (
	// ErrAlreadySettled means a concurrent writer already moved the upload
	// out of receiving. The intended end state was reached by another actor,
	// callers treat this as a no-op success.
	ErrAlreadySettled = errors.New("upload already settled")

	ErrUploadNotFound = errors.New("upload not found")
)

type UploadStore struct {
	Client    *dynamodb.Client
	TableName string
}

func NewUploadStore() (*UploadStore, error) {
	tableName := os.Getenv("DYNAMODB_UPLOADS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_UPLOADS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &UploadStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

// CreateUpload registers a transfer when the metadata message arrives.
// Replayed metadata for an upload that already exists is a no-op.
func (s *UploadStore) CreateUpload(ctx context.Context, up models.Upload) error {
	item, err := attributevalue.MarshalMap(up)
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(upload_id)"),
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return nil
		}
		return fmt.Errorf("failed to store upload: %w", err)
	}

	return nil
}

func (s *UploadStore) GetUpload(ctx context.Context, uploadID string) (*models.Upload, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}

	var up models.Upload
	if err := attributevalue.UnmarshalMap(out.Item, &up); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload: %w", err)
	}

	return &up, nil
}

// RecordChunk advances the received counter while the transfer is still
// receiving and returns the updated record so the caller can detect
// completion.
func (s *UploadStore) RecordChunk(ctx context.Context, uploadID string, now int64) (*models.Upload, error) {
	out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
		ConditionExpression: aws.String("#status = :receiving"),
		UpdateExpression:    aws.String("ADD received_chunks :one SET updated_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":receiving": &types.AttributeValueMemberS{Value: models.UploadReceiving},
			":one":       &types.AttributeValueMemberN{Value: "1"},
			":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("failed to record chunk: %w", err)
	}

	var up models.Upload
	if err := attributevalue.UnmarshalMap(out.Attributes, &up); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload: %w", err)
	}

	return &up, nil
}

// MarkComplete settles the transfer. Conditional so a timeout that lost the
// race cannot resurrect a completed upload.
func (s *UploadStore) MarkComplete(ctx context.Context, uploadID string, now int64) error {
	return s.transition(ctx, uploadID, models.UploadReceiving, models.UploadComplete, "", now)
}

// MarkFailed transitions receiving -> failed. A last-instant completion wins:
// the condition only fires while the row is still receiving.
func (s *UploadStore) MarkFailed(ctx context.Context, uploadID, reason string, now int64) error {
	return s.transition(ctx, uploadID, models.UploadReceiving, models.UploadFailed, reason, now)
}

// Reactivate moves failed -> receiving when a retry is accepted.
func (s *UploadStore) Reactivate(ctx context.Context, uploadID string, newDeadline, now int64) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
		ConditionExpression: aws.String("#status = :failed"),
		UpdateExpression: aws.String(
			"SET #status = :receiving, deadline_at = :deadline, updated_at = :now REMOVE fail_reason",
		),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":    &types.AttributeValueMemberS{Value: models.UploadFailed},
			":receiving": &types.AttributeValueMemberS{Value: models.UploadReceiving},
			":deadline":  &types.AttributeValueMemberN{Value: strconv.FormatInt(newDeadline, 10)},
			":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("failed to reactivate upload: %w", err)
	}

	return nil
}

// IncrementRetry bumps retry_count and returns the new value.
func (s *UploadStore) IncrementRetry(ctx context.Context, uploadID string) (int, error) {
	out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
		UpdateExpression: aws.String("ADD retry_count :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}

	counter, ok := out.Attributes["retry_count"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("unexpected retry_count attribute in response")
	}

	count, err := strconv.Atoi(counter.Value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse retry_count: %w", err)
	}

	return count, nil
}

// ListReceivingPastDeadline queries the status index for in-flight uploads
// whose deadline has passed.
func (s *UploadStore) ListReceivingPastDeadline(ctx context.Context, now int64) ([]models.Upload, error) {
	out, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.TableName),
		IndexName:              aws.String("StatusDeadlineIndex"),
		KeyConditionExpression: aws.String("#status = :receiving AND deadline_at <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":receiving": &types.AttributeValueMemberS{Value: models.UploadReceiving},
			":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue uploads: %w", err)
	}

	var overdue []models.Upload
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &overdue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal uploads: %w", err)
	}

	return overdue, nil
}

func (s *UploadStore) transition(ctx context.Context, uploadID, from, to, reason string, now int64) error {
	update := "SET #status = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":from": &types.AttributeValueMemberS{Value: from},
		":to":   &types.AttributeValueMemberS{Value: to},
		":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
	}
	if reason != "" {
		update += ", fail_reason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: reason}
	}

	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.TableName),
		Key: map[string]types.AttributeValue{
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
		ConditionExpression: aws.String("#status = :from"),
		UpdateExpression:    aws.String(update),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("failed to transition upload %s to %s: %w", uploadID, to, err)
	}

	return nil
}
