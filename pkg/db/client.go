package db

import (
	"context"
	"fmt"
	"log"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	Client *dynamodb.Client
	once   sync.Once // logs in to aws only once per cold start
)

// NewDynamoDBClient initializes the shared connection to the db
func NewDynamoDBClient(ctx context.Context) error {
	var initErr error

	once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			initErr = fmt.Errorf("unable to load SDK config: %w", err)
			return
		}

		Client = dynamodb.NewFromConfig(cfg)
		log.Println("DynamoDB Connection Established")
	})

	return initErr
}
