// Command mirror-worker consumes transaction events from AMQP and appends
// them to the configured Google Sheet.
package main

import (
	"context"
	"errors"
	"os"

	"simbank/internal/amqp"
	"simbank/internal/cache"
	"simbank/internal/cli"
	"simbank/internal/config"
	applog "simbank/internal/log"
	"simbank/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting mirror-worker")
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateMirror)

	writer, err := cli.NewTransactionWriter(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.SheetsEnabled() {
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewMirrorWorker(amqpClient, writer)
	janitor := cache.NewJanitor(logger.Logger.With(applog.FieldComponent, applog.ComponentCache))
	janitor.Register(w.SeenCache())
	janitor.Start(cfg.CacheCleanupInterval)
	defer janitor.Stop()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Mirror-worker stopped")
}
