package backend

import (
	"context"
	"errors"
	"fmt"

	"finlens/internal/amqp"
	"finlens/internal/config"
	"finlens/internal/events"
	"finlens/internal/log"
	"finlens/internal/ports"
	"finlens/internal/services"
)

// App holds every service built from one configuration. Both the API
// server and the worker start from it.
type App struct {
	Store     ports.Store
	AMQP      *amqp.Client
	Events    events.Publisher
	Users     *services.UserService
	Accounts  *services.AccountService
	Budgets   *services.BudgetService
	Alerts    *services.AlertService
	Analytics *services.AnalyticsService
	Sync      *services.SyncService

	cleanups []CleanupFunc
}

// Options adjusts how an App is wired.
type Options struct {
	// QueueSyncs sends sync work to the broker instead of running it inline
	// when a broker is configured. The worker sets it to false.
	QueueSyncs bool
}

func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts Options) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	backendCfg, err := FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	app.Store = result.Store
	app.cleanups = append(app.cleanups, result.Cleanup)

	aiProvider, err := NewAIProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	bankProvider, err := NewBankProvider(cfg)
	if err != nil {
		return nil, err
	}

	app.AMQP, err = NewAMQPClient(cfg, logger)
	if err != nil {
		if cfg.EventsBackend == "amqp" || !opts.QueueSyncs {
			return nil, err
		}
		logger.Warn("Failed to initialize AMQP client, syncing inline", log.FieldError, err)
	}
	if app.AMQP != nil {
		app.cleanups = append(app.cleanups, app.AMQP.Close)
	}

	app.Events, err = NewEventsPublisher(cfg, app.AMQP, logger)
	if err != nil {
		return nil, err
	}
	app.cleanups = append(app.cleanups, app.Events.Close)

	app.Users = services.NewUserService(app.Store)
	app.Accounts = services.NewAccountService(app.Store)
	app.Budgets = services.NewBudgetService(app.Store)
	app.Alerts = services.NewAlertService(app.Store)
	app.Analytics = services.NewAnalyticsService(app.Store, aiProvider, logger)

	deps := services.SyncDeps{
		Store:       app.Store,
		Bank:        bankProvider,
		AI:          aiProvider,
		Sealer:      result.Sealer,
		Events:      app.Events,
		Invalidator: app.Analytics,
		Logger:      logger,
	}
	if opts.QueueSyncs && app.AMQP != nil {
		deps.Requester = app.AMQP
	}
	app.Sync = services.NewSyncService(deps, services.SyncConfig{Concurrency: cfg.SyncConcurrency})

	logger.WithComponent(log.ComponentBackend).Info("Application wired",
		"data_backend", cfg.DataBackend,
		"ai_provider", aiProvider.Name(),
		"bank_provider", bankProvider.Name(),
		"events_backend", cfg.EventsBackend,
		"queued_syncs", deps.Requester != nil)

	ok = true
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}
