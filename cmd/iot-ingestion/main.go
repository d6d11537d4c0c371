package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/internal/config"
	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/internal/ingestion"
	"github.com/BrainlyTree-Project/Backend/internal/notify"
	"github.com/BrainlyTree-Project/Backend/internal/reviewers"
	"github.com/BrainlyTree-Project/Backend/internal/telemetry"
	"github.com/BrainlyTree-Project/Backend/internal/thresholds"
	"github.com/BrainlyTree-Project/Backend/internal/uploads"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
	"github.com/BrainlyTree-Project/Backend/pkg/logger"
)

var (
	log     *slog.Logger
	service *ingestion.Service
)

func init() {

	log = logger.InitLogger()
	log.Info("IoT Ingestion: Cold Start")

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	ctx := context.Background()

	if err := db.NewDynamoDBClient(ctx); err != nil {
		log.Error("Failed to initialize DynamoDB", "error", err)
		panic(err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Errorf("failed to load aws config: %w", err))
	}

	readingStore, err := telemetry.NewReadingStore()
	if err != nil {
		panic(fmt.Errorf("failed to init reading store: %w", err))
	}

	deviceStore, err := devices.NewDeviceStore()
	if err != nil {
		panic(fmt.Errorf("failed to init device store: %w", err))
	}

	uploadStore, err := uploads.NewUploadStore()
	if err != nil {
		panic(fmt.Errorf("failed to init upload store: %w", err))
	}

	thresholdStore, err := thresholds.NewThresholdStore()
	if err != nil {
		panic(fmt.Errorf("failed to init threshold store: %w", err))
	}

	alertStore, err := alerts.NewAlertStore()
	if err != nil {
		panic(fmt.Errorf("failed to init alert store: %w", err))
	}

	reviewerStore, err := reviewers.NewReviewerStore()
	if err != nil {
		panic(fmt.Errorf("failed to init reviewer store: %w", err))
	}

	eventStore, err := notify.NewEventStore()
	if err != nil {
		panic(fmt.Errorf("failed to init event store: %w", err))
	}

	inApp, err := notify.NewInAppChannel()
	if err != nil {
		panic(fmt.Errorf("failed to init in-app channel: %w", err))
	}

	email, err := notify.NewEmailChannel(sesv2.NewFromConfig(awsCfg))
	if err != nil {
		panic(fmt.Errorf("failed to init email channel: %w", err))
	}

	webhook := notify.NewWebhookChannel(cfg.ChannelTimeout())

	service = &ingestion.Service{
		Logger:     log,
		Readings:   readingStore,
		Devices:    deviceStore,
		Uploads:    uploadStore,
		Thresholds: thresholdStore,
		Alerts:     alertStore,
		Notifier: &notify.AlertEmitter{
			Resolver: &reviewers.Resolver{
				Source: reviewerStore,
				Logger: log,
			},
			Dispatcher: &notify.Dispatcher{
				Events:         eventStore,
				Channels:       []notify.Channel{inApp, email, webhook},
				Concurrency:    cfg.DispatchConcurrency,
				AttemptTimeout: cfg.ChannelTimeout(),
				Logger:         log,
			},
			Logger: log,
		},
		DefaultMaxRetries: cfg.DefaultMaxRetries,
	}
}

func main() {
	lambda.Start(service.HandleRequest)
}
