package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/internal/config"
	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/internal/notify"
	"github.com/BrainlyTree-Project/Backend/internal/reviewers"
	"github.com/BrainlyTree-Project/Backend/internal/sweeper"
	"github.com/BrainlyTree-Project/Backend/internal/uploads"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
	"github.com/BrainlyTree-Project/Backend/pkg/logger"
)

var (
	log     *slog.Logger
	service *sweeper.Service
)

func init() {

	log = logger.InitLogger()
	log.Info("Sweeper: Cold Start")

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

	uploadStore, err := uploads.NewUploadStore()
	if err != nil {
		panic(fmt.Errorf("failed to init upload store: %w", err))
	}

	deviceStore, err := devices.NewDeviceStore()
	if err != nil {
		panic(fmt.Errorf("failed to init device store: %w", err))
	}

	commandStore, err := commands.NewCommandStore()
	if err != nil {
		panic(fmt.Errorf("failed to init command store: %w", err))
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

	queue := &commands.Queue{
		Commands: commandStore,
		Uploads:  uploadStore,
		Alerts:   alertStore,
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
		LeadTime:   cfg.RetryLeadTime(),
		CommandTTL: cfg.CommandTTL(),
		Logger:     log,
	}

	service = &sweeper.Service{
		Monitor: &uploads.Monitor{
			Uploads: uploadStore,
			Devices: deviceStore,
			Queue:   queue,
			Logger:  log,
		},
		Cleanup: &commands.Cleanup{
			Commands: commandStore,
		},
		Logger: log,
	}
}

func handleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	summary, err := service.Run(ctx, time.Now())
	if err != nil {
		log.Error("maintenance run failed", "error", err)
		return err
	}

	log.Info("maintenance run summary",
		"timed_out", len(summary.Sweep.TimedOut),
		"cancelled", summary.Cleanup.Cancelled,
	)
	return nil
}

func main() {
	lambda.Start(handleRequest)
}
