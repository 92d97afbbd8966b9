package main

import (
	"context"
	"errors"
	"os"

	"invoicedash/internal/amqp"
	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	applog "invoicedash/internal/log"
	"invoicedash/internal/services"
	"invoicedash/internal/sheets/google"
	"invoicedash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	logger.Info("Starting invoicedash-worker")

	if !cfg.ExportsEnabled() {
		logger.Error("Worker requires AMQP_URL and SQLITE_DB_PATH")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("Worker requires GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	res, err := backend.NewFactory(logger).Create(ctx, cfg, backend.Requirements{Store: true, SheetsWriter: true})
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	dashboard := services.NewDashboardService(res.Reader, cfg.WeekStartDay())
	exportWorker := worker.NewExportWorker(res.Store, dashboard, res.Sheets,
		worker.WithPermanentErrors(google.IsPermanent))

	handler := func(ctx context.Context, msg *amqp.ExportRequestMessage) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.ExportTimeout)
		defer cancel()
		ctx = applog.WithRequestID(ctx, msg.RunID)
		return exportWorker.HandleExportMessage(ctx, msg)
	}

	logger.Info("Consuming export requests", "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	if err := amqpClient.ConsumeExportRequests(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
