package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"churchbook/internal/cache"
	"churchbook/internal/cli"
	apphttp "churchbook/internal/http"
	"churchbook/internal/log"
	"churchbook/internal/services"
	"churchbook/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var pub services.Publisher
	if amqpClient != nil {
		pub = amqpClient
	}

	svc, err := cli.OpenLedger(context.Background(), cfg, logger, pub)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Currency:           cfg.Currency,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	loc, _ := cfg.Location()
	// With AMQP on, scheduled snapshots belong to churchbook-worker.
	var snapshots *worker.SnapshotWorker
	if amqpClient == nil {
		snapshots, err = worker.NewSnapshotWorker(svc, nil, worker.Config{
			Schedule: cfg.SnapshotSchedule,
			Location: loc,
		}, logger)
		if err != nil {
			logger.Error("Failed to create snapshot worker", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if snapshots != nil {
			if err := snapshots.Stop(shutdownCtx); err != nil {
				logger.Error("Snapshot worker shutdown error", log.FieldError, err)
			}
		}
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	})

	cacheManager := cache.NewManager(logger.Logger.With(log.FieldComponent, log.ComponentCache))
	cacheManager.Register(svc.SummaryCache())
	go cacheManager.Run(ctx, time.Minute)

	if snapshots != nil {
		if err := snapshots.Start(ctx); err != nil {
			logger.Error("Failed to start snapshot worker", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Starting churchbook server", "port", cfg.Port, "backend", cfg.DataBackend, "amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
