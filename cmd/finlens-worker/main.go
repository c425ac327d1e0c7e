package main

import (
	"context"
	"os"
	"time"

	"finlens/internal/backend"
	"finlens/internal/cli"
	"finlens/internal/log"
	"finlens/internal/sheets"
	"finlens/internal/sheets/gcs"
	gsheet "finlens/internal/sheets/google"
	"finlens/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting finlens-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	app, err := backend.NewApp(context.Background(), cfg, logger, backend.Options{QueueSyncs: false})
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}

	deps := worker.Deps{
		Syncer:   app.Sync,
		Spending: app.Analytics,
		Accounts: app.Store,
		Logger:   logger,
	}
	if app.AMQP != nil {
		deps.Consumer = app.AMQP
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var reports sheets.Fanout
	if cfg.SheetsExportEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.OptionsFromConfig(cfg), logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = app.Close()
			os.Exit(1)
		}
		reports = append(reports, client)
		logger.Info("Google Sheets report export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleReportSheet)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var bucket *gcs.Writer
	if cfg.GCSExportEnabled() {
		bucket, err = gcs.New(context.Background(), cfg.GCSReportBucket, cfg.GCSReportPrefix, logger)
		if err != nil {
			logger.Error("Failed to initialize Cloud Storage client", log.FieldError, err)
			_ = app.Close()
			os.Exit(1)
		}
		reports = append(reports, bucket)
		logger.Info("Cloud Storage report copies enabled",
			"bucket", cfg.GCSReportBucket,
			"prefix", cfg.GCSReportPrefix)
	}

	switch len(reports) {
	case 0:
	case 1:
		deps.Reports = reports[0]
	default:
		deps.Reports = reports
	}

	wcfg := worker.DefaultConfig()
	wcfg.SyncInterval = cfg.SyncInterval
	w := worker.New(deps, wcfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
		if err := w.Stop(ctx); err != nil {
			logger.Warn("Worker did not stop cleanly", log.FieldError, err)
		}
		if bucket != nil {
			if err := bucket.Close(); err != nil {
				logger.Warn("Failed to close Cloud Storage client", log.FieldError, err)
			}
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start worker", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	select {
	case <-w.Done():
		if ctx.Err() == nil {
			// Stopped on its own, e.g. the broker consumer gave up.
			logger.Error("Worker exited", log.FieldError, w.Err())
			_ = app.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	<-done
}
