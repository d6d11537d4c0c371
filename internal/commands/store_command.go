package commands

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

var (
	// ErrDuplicatePending means a pending command already exists for this
	// (device, upload) pair. Queuing again is a no-op.
	ErrDuplicatePending = errors.New("pending command already exists")

	// ErrNotPending means the command already left pending, e.g. the
	// transport delivered it or cleanup cancelled it first.
	ErrNotPending = errors.New("command is not pending")

	ErrCommandNotFound = errors.New("command not found")
)

// CommandStore keys live rows by (device_id, upload_id) so the single-
// pending-command-per-upload invariant is enforced by a conditional put
// rather than application-side reads. Settled commands displaced by a later
// requeue are kept as archive rows keyed (device_id, upload_id#command_id).
type CommandStore struct {
	Client    *dynamodb.Client
	TableName string
}

func NewCommandStore() (*CommandStore, error) {
	tableName := os.Getenv("DYNAMODB_COMMANDS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_COMMANDS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &CommandStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

// SavePending writes a new pending command unless one is already pending for
// the same (device, upload) pair. A settled predecessor in the slot is not
// lost: the put returns it and it is re-keyed as an archive row before the
// call completes, so every delivered or cancelled command stays on record
// across retry cycles.
func (store *CommandStore) SavePending(ctx context.Context, cmd models.Command) error {
	if cmd.ExpiresAt == 0 {
		cmd.ExpiresAt = time.Now().Add(30 * 24 * time.Hour).Unix()
	}

	if cmd.CreatedAt == 0 {
		cmd.CreatedAt = time.Now().Unix()
	}

	cmd.Status = models.CommandPending

	item, err := attributevalue.MarshalMap(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(store.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(device_id) OR #status <> :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: models.CommandPending},
		},
		ReturnValues: types.ReturnValueAllOld,
	}

	out, err := store.Client.PutItem(ctx, input)
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("failed to store command in dynamodb: %w", err)
	}

	// The condition guarantees anything replaced was settled. Write it back
	// under an archive key so the audit record survives the requeue.
	if len(out.Attributes) > 0 {
		if err := store.archiveSettled(ctx, out.Attributes); err != nil {
			return fmt.Errorf("archive settled command: %w", err)
		}
	}

	return nil
}

func (store *CommandStore) archiveSettled(ctx context.Context, item map[string]types.AttributeValue) error {
	archived := archivedCommandItem(item)
	if archived == nil {
		return nil
	}

	_, err := store.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(store.TableName),
		Item:      archived,
	})
	if err != nil {
		return fmt.Errorf("failed to store archived command: %w", err)
	}

	return nil
}

// archivedCommandItem re-keys a replaced command row under
// upload_id#command_id. Archive rows are settled, so the pending filters in
// ListPendingDue and the StatusExpiryIndex never surface them, while
// CommandIdIndex lookups still find them by their original command id.
func archivedCommandItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	uploadID, ok := item["upload_id"].(*types.AttributeValueMemberS)
	commandID, okID := item["command_id"].(*types.AttributeValueMemberS)
	if !ok || !okID {
		return nil
	}

	archived := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		archived[k] = v
	}
	archived["upload_id"] = &types.AttributeValueMemberS{Value: uploadID.Value + "#" + commandID.Value}

	return archived
}

// ListPendingDue returns a device's pending commands whose scheduled time
// has arrived; the transport publishes these when the device wakes.
func (store *CommandStore) ListPendingDue(ctx context.Context, deviceID string, now int64) ([]models.Command, error) {
	out, err := store.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(store.TableName),
		KeyConditionExpression: aws.String("device_id = :device_id"),
		FilterExpression:       aws.String("#status = :pending AND scheduled_at <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":device_id": &types.AttributeValueMemberS{Value: deviceID},
			":pending":   &types.AttributeValueMemberS{Value: models.CommandPending},
			":now":       &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pending commands: %w", err)
	}

	var cmds []models.Command
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &cmds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal commands: %w", err)
	}

	return cmds, nil
}

// GetByCommandID looks a command up through the CommandIdIndex.
func (store *CommandStore) GetByCommandID(ctx context.Context, commandID string) (*models.Command, error) {
	out, err := store.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(store.TableName),
		IndexName:              aws.String("CommandIdIndex"),
		KeyConditionExpression: aws.String("command_id = :command_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":command_id": &types.AttributeValueMemberS{Value: commandID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query command: %w", err)
	}

	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, commandID)
	}

	var cmd models.Command
	if err := attributevalue.UnmarshalMap(out.Items[0], &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command: %w", err)
	}

	return &cmd, nil
}

// MarkDelivered transitions pending -> delivered once the transport has
// published the command to the device.
func (store *CommandStore) MarkDelivered(ctx context.Context, deviceID, uploadID string, now int64) error {
	return store.transition(ctx, deviceID, uploadID, models.CommandDelivered, now)
}

// Cancel transitions pending -> cancelled. A pure status transition, never a
// deletion, so the audit history survives.
func (store *CommandStore) Cancel(ctx context.Context, deviceID, uploadID string, now int64) error {
	return store.transition(ctx, deviceID, uploadID, models.CommandCancelled, now)
}

// ListPendingExpired returns pending commands whose expiry has passed
// unconsumed, via the status index.
func (store *CommandStore) ListPendingExpired(ctx context.Context, now int64) ([]models.Command, error) {
	out, err := store.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(store.TableName),
		IndexName:              aws.String("StatusExpiryIndex"),
		KeyConditionExpression: aws.String("#status = :pending AND expires_at <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: models.CommandPending},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query expired commands: %w", err)
	}

	var cmds []models.Command
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &cmds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal commands: %w", err)
	}

	return cmds, nil
}

func (store *CommandStore) transition(ctx context.Context, deviceID, uploadID, to string, now int64) error {
	_, err := store.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(store.TableName),
		Key: map[string]types.AttributeValue{
			"device_id": &types.AttributeValueMemberS{Value: deviceID},
			"upload_id": &types.AttributeValueMemberS{Value: uploadID},
		},
		ConditionExpression: aws.String("#status = :pending"),
		UpdateExpression:    aws.String("SET #status = :to, updated_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: models.CommandPending},
			":to":      &types.AttributeValueMemberS{Value: to},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrNotPending
		}
		return fmt.Errorf("failed to transition command to %s: %w", to, err)
	}

	return nil
}
