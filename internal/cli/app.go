package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simbank/internal/adapters"
	"simbank/internal/amqp"
	"simbank/internal/auth"
	"simbank/internal/backend"
	"simbank/internal/cache"
	"simbank/internal/config"
	"simbank/internal/core"
	"simbank/internal/generator"
	applog "simbank/internal/log"
	"simbank/internal/quota"
	"simbank/internal/services"
	"simbank/internal/sheets"
	gsheet "simbank/internal/sheets/google"
	memsheet "simbank/internal/sheets/memory"
	"simbank/internal/store"
)

// App holds the services every binary builds from the same configuration.
type App struct {
	Config   *config.Config
	Logger   *applog.Logger
	Store    store.Store
	Backend  *backend.Result
	Days     core.DayResolver
	Accounts *services.AccountService
	Ticks    *services.TickService
	Query    *services.QueryService
	Janitor  *cache.Janitor

	closers []func() error
}

// Build opens the store, connects the optional event publishers and wires the
// services. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	days, err := core.NewDayResolver(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	app.Days = days

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	app.Backend = res
	app.Store = res.Store
	app.closers = append(app.closers, res.Cleanup)

	rnd := generator.NewTimeSeededRand()
	ledger, err := quota.NewLedger(res.Store, quota.Config{
		MinScheduled: cfg.MinTxns,
		MaxScheduled: cfg.MaxTxns,
		ManualCap:    cfg.ManualCap,
	}, rnd)
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}
	synth, err := generator.NewSynthesizer(core.DefaultCatalog(), days, rnd,
		generator.WithRefundProbability(cfg.RefundProbability))
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.Accounts = services.NewAccountService(res.Store, res.Store, rnd)
	app.Query = services.NewQueryService(res.Store, days)
	app.Ticks, err = services.NewTickService(services.TickDeps{
		Accounts:     app.Accounts,
		Ledger:       ledger,
		Synthesizer:  synth,
		Transactions: res.Store,
		Users:        res.Store,
		Days:         days,
		Events:       app.publishers(ctx),
		Logger:       logger,
		Concurrency:  cfg.SweepConcurrency,
	})
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.Janitor = cache.NewJanitor(logger.Logger.With(applog.FieldComponent, applog.ComponentCache))
	app.Janitor.Register(app.Accounts.Cache())
	app.closers = append(app.closers, func() error { app.Janitor.Stop(); return nil })

	return app, nil
}

// publishers connects to the broker when AMQP_URL is set. Without a broker a
// configured spreadsheet is written in-process instead. Connection failures
// are logged and leave the app running without events.
func (a *App) publishers(ctx context.Context) services.EventPublisher {
	var pubs adapters.MultiPublisher

	if a.Config.AMQPURL != "" {
		client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue)
		if err != nil {
			a.Logger.WithComponent(applog.ComponentAMQP).WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err.Error())
		} else {
			a.closers = append(a.closers, client.Close)
			pubs = append(pubs, client)
			a.Logger.WithComponent(applog.ComponentAMQP).InfoContext(ctx, "AMQP publisher ready",
				"exchange", a.Config.AMQPExchange, "queue", a.Config.AMQPQueue)
		}
	}

	if a.Config.AMQPURL == "" && a.Config.SheetsEnabled() {
		w, err := NewTransactionWriter(ctx, a.Config)
		if err != nil {
			a.Logger.WithComponent(applog.ComponentSheets).WarnContext(ctx, "Failed to initialize sheets mirror, continuing without it",
				applog.FieldError, err.Error())
		} else {
			pubs = append(pubs, adapters.NewSheetsPublisher(w))
		}
	}

	if len(pubs) == 0 {
		return services.NopPublisher{}
	}
	return pubs
}

// NewTransactionWriter returns the Google Sheets writer when a spreadsheet is
// configured and an in-memory writer otherwise.
func NewTransactionWriter(ctx context.Context, cfg *config.Config) (sheets.TransactionWriter, error) {
	if !cfg.SheetsEnabled() {
		return memsheet.New(), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
}

// SeedUsers registers the configured users so the sweep visits them before
// their first request.
func (a *App) SeedUsers(ctx context.Context, now time.Time) error {
	for _, uid := range a.Config.SeedUsers {
		if err := a.Accounts.RegisterUser(ctx, uid, now); err != nil {
			return err
		}
	}
	if n := len(a.Config.SeedUsers); n > 0 {
		a.Logger.InfoContext(ctx, "Seeded users", "count", n)
	}
	return nil
}

// Verifier builds the bearer token verifier for the configured auth mode.
func (a *App) Verifier() (auth.Verifier, error) {
	v, err := auth.New(a.Config.AuthMode, a.Config.AuthTokens, a.Config.AuthAudience)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return v, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
