package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"invoicedash/internal/amqp"
	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	apphttp "invoicedash/internal/http"
	applog "invoicedash/internal/log"
	"invoicedash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	exportsEnabled := cfg.ExportsEnabled()
	res, err := backend.NewFactory(logger).Create(ctx, cfg, backend.Requirements{Store: exportsEnabled})
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	dashboard := services.NewDashboardService(res.Reader, cfg.WeekStartDay())

	deps := apphttp.Dependencies{
		Reports:         dashboard,
		Title:           cfg.DashboardTitle,
		LogoPath:        cfg.DashboardLogoPath,
		ExportRateLimit: cfg.ExportRateLimit,
	}
	if res.Store != nil {
		deps.Ready = res.Store.Ping
	}

	if exportsEnabled {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		deps.Exports = services.NewExportService(res.Store, amqpClient, cfg.WeekStartDay())
		logger.Info("Sheet exports enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Sheet exports disabled - AMQP_URL not set")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting invoicedash server", "port", cfg.Port, "backend", cfg.DataBackend, "week_start", cfg.WeekStartDay().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
