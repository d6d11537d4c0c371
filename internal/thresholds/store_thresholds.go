package thresholds

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

// CompanyDefaultKey is the sort key of a company-wide threshold row.
const CompanyDefaultKey = "DEFAULT"

var ErrNoThresholds = errors.New("no threshold configuration")

type ThresholdStore struct {
	Client    *dynamodb.Client
	TableName string
}

func NewThresholdStore() (*ThresholdStore, error) {
	tableName := os.Getenv("DYNAMODB_THRESHOLDS_TABLE")
	if tableName == "" {
		return nil, fmt.Errorf("DYNAMODB_THRESHOLDS_TABLE environment variable is not set")
	}

	if db.Client == nil {
		return nil, fmt.Errorf("dynamodb client is not initialized")
	}

	return &ThresholdStore{
		Client:    db.Client,
		TableName: tableName,
	}, nil
}

// GetEffective loads the configuration for one evaluation: the
// device-specific row wins if present, else the company default. The
// returned snapshot is never mutated by the engine.
func (store *ThresholdStore) GetEffective(ctx context.Context, companyID, deviceID string) (*models.ThresholdConfig, error) {
	cfg, err := store.get(ctx, companyID, deviceID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	cfg, err = store.get(ctx, companyID, CompanyDefaultKey)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}

	return nil, fmt.Errorf("%w: company %s device %s", ErrNoThresholds, companyID, deviceID)
}

func (store *ThresholdStore) get(ctx context.Context, companyID, deviceID string) (*models.ThresholdConfig, error) {
	out, err := store.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(store.TableName),
		Key: map[string]types.AttributeValue{
			"company_id": &types.AttributeValueMemberS{Value: companyID},
			"device_id":  &types.AttributeValueMemberS{Value: deviceID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold config: %w", err)
	}

	if out.Item == nil {
		return nil, nil
	}

	var cfg models.ThresholdConfig
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal threshold config: %w", err)
	}

	return &cfg, nil
}
