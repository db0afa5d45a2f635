package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"simbank/internal/cli"
	"simbank/internal/config"
	apphttp "simbank/internal/http"
	applog "simbank/internal/log"
	"simbank/internal/middleware/ratelimit"
	"simbank/internal/scheduler"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := cli.Build(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Error("Failed to initialize application", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	if err := app.SeedUsers(context.Background(), time.Now()); err != nil {
		logger.Error("Failed to seed users", applog.FieldError, err.Error())
		os.Exit(1)
	}

	verifier, err := app.Verifier()
	if err != nil {
		logger.Error("Failed to initialize authentication", applog.FieldError, err.Error())
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Ticks:          app.Ticks,
		Query:          app.Query,
		Accounts:       app.Accounts,
		Verifier:       verifier,
		Logger:         logger,
		Pinger:         app.Backend.Pinger,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err.Error())
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	app.Janitor.Start(cfg.CacheCleanupInterval)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		m := srv.TraceMetrics()
		logger.Info("HTTP server stopped", "requests", m.TotalRequests, "server_errors", m.ServerErrors)
	})

	if cfg.SchedulerEnabled {
		sched, err := scheduler.New(app.Ticks, app.Days.Location(), logger)
		if err != nil {
			logger.Error("Failed to create scheduler", applog.FieldError, err.Error())
			os.Exit(1)
		}
		go func() {
			if cfg.SweepOnStart {
				sched.RunOnce(ctx, time.Now())
			}
			_ = sched.Run(ctx)
		}()
		logger.Info("Hourly sweep scheduled", "timezone", cfg.Timezone)
	} else {
		logger.Info("Scheduler disabled, run cmd/sweep from an external timer")
	}

	logger.Info("Starting simbank server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_mode", cfg.AuthMode,
		"amqp_enabled", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
