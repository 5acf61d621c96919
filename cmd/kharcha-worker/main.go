package main

import (
	"context"
	"os"
	"time"

	"kharcha/internal/backend"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	applog "kharcha/internal/log"
	gsheet "kharcha/internal/sheets/google"
	"kharcha/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting kharcha-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", applog.FieldError, err.Error())
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend))
	consumerConfig := backendConfig
	// The worker only reads, so it needs no publisher.
	backendConfig.Events = backend.EventsNone
	result, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", applog.FieldError, err.Error(), "backend", cfg.DataBackend)
	}

	sheetsClient, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, int32(cfg.AmountScale))
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", applog.FieldError, err.Error())
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	consumer, err := factory.CreateConsumer(context.Background(), consumerConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize event consumer", applog.FieldError, err.Error(), "events", cfg.EventsBackend)
	}
	if consumer == nil {
		logger.Info("Events disabled, mirroring on interval only", "interval", cfg.SyncInterval.String())
	}

	mirror := worker.NewMirrorWorker(result.Aggregator, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("Consumer close error", applog.FieldError, err.Error())
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err.Error())
		}
	})

	if err := mirror.Run(ctx, consumer, cfg.SyncInterval); err != nil {
		cli.Fatal(logger, "Mirror worker stopped", applog.FieldError, err.Error())
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
