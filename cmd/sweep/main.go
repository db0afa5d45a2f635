// Command sweep runs a single scheduled sweep and exits, for deployments that
// trigger it from cron or a cloud scheduler instead of the in-process timer.
package main

import (
	"context"
	"os"
	"time"

	"simbank/internal/cli"
	"simbank/internal/config"
	applog "simbank/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	now := time.Now()
	if err := app.SeedUsers(ctx, now); err != nil {
		logger.Error("Failed to seed users", applog.FieldError, err.Error())
		os.Exit(1)
	}

	report, err := app.Ticks.Sweep(ctx, now)
	if err != nil {
		logger.Error("Sweep failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	for _, f := range report.Failures {
		logger.Warn("Account skipped", applog.FieldUserID, f.Ref.UserID, applog.FieldAccount, string(f.Ref.Type), applog.FieldError, f.Err.Error())
	}
	logger.Info("Sweep finished",
		applog.FieldDay, report.Day,
		applog.FieldCreated, len(report.Created),
		applog.FieldFailures, len(report.Failures))
}
