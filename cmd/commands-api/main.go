package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/internal/api"
	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/internal/config"
	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/internal/uploads"
	"github.com/BrainlyTree-Project/Backend/pkg/db"
	"github.com/BrainlyTree-Project/Backend/pkg/logger"
)

func main() {
	log := logger.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if err := db.NewDynamoDBClient(ctx); err != nil {
		log.Error("failed to initialize DynamoDB", "error", err)
		os.Exit(1)
	}

	commandStore, err := commands.NewCommandStore()
	if err != nil {
		log.Error("failed to init command store", "error", err)
		os.Exit(1)
	}

	deviceStore, err := devices.NewDeviceStore()
	if err != nil {
		log.Error("failed to init device store", "error", err)
		os.Exit(1)
	}

	uploadStore, err := uploads.NewUploadStore()
	if err != nil {
		log.Error("failed to init upload store", "error", err)
		os.Exit(1)
	}

	alertStore, err := alerts.NewAlertStore()
	if err != nil {
		log.Error("failed to init alert store", "error", err)
		os.Exit(1)
	}

	handler := &api.Handler{
		Logger:   log,
		Commands: commandStore,
		Devices:  deviceStore,
		Alerts:   alertStore,
		Queue: &commands.Queue{
			Commands:   commandStore,
			Uploads:    uploadStore,
			Alerts:     alertStore,
			LeadTime:   cfg.RetryLeadTime(),
			CommandTTL: cfg.CommandTTL(),
			Logger:     log,
		},
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: api.SetupRouter(handler),
	}

	go func() {
		log.Info("commands api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	log.Info("server stopped")
}
