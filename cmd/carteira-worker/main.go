package main

import (
	"context"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	"carteira/internal/log"
	"carteira/internal/sheets"
	"carteira/internal/sheets/google"
	"carteira/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(log.ComponentWorker)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting carteira-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	app, err := cli.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// The spreadsheet export is optional
	var exporter sheets.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.New(ctx, google.ConfigFromEnv(cfg.GoogleSpreadsheetID, cfg.ReportSheetName), logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = app.Close()
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// Without AMQP the worker still sweeps on its interval
	var src worker.EventSource
	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = app.Close()
			os.Exit(1)
		}
		src = consumer
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running periodic sweeps only")
	}

	w := worker.NewEventWorker(app.Reconciler, app.Reports, exporter, logger)

	exitCode := 0
	if err := w.Run(ctx, src, cfg.ReconcileInterval); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		exitCode = 1
	} else if ctx.Err() != nil {
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}

	err = cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) error {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn("Closing AMQP consumer", log.FieldError, err)
			}
		}
		return app.Close()
	})
	if err != nil {
		exitCode = 1
	}
	os.Exit(exitCode)
}
