package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finlens/internal/backend"
	"finlens/internal/cache"
	"finlens/internal/cli"
	apphttp "finlens/internal/http"
	"finlens/internal/log"
	"finlens/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := backend.NewApp(context.Background(), cfg, logger, backend.Options{QueueSyncs: true})
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.Register(app.Analytics.DashboardCache())
	caches.StartCleanup(time.Minute)

	opts := apphttp.Options{RateLimit: ratelimit.DefaultConfig()}
	if p, ok := app.Store.(apphttp.Pinger); ok {
		opts.Ready = p
	}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Users:     app.Users,
		Accounts:  app.Accounts,
		Budgets:   app.Budgets,
		Alerts:    app.Alerts,
		Analytics: app.Analytics,
		Sync:      app.Sync,
	}, logger, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	logger.Info("Starting finlens server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
