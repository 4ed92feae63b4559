package main

import (
	"context"
	"errors"
	"os"
	"time"

	"churchbook/internal/cli"
	"churchbook/internal/log"
	"churchbook/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting churchbook-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for churchbook-worker")
		os.Exit(1)
	}
	if cfg.DataBackend != "sqlite" {
		logger.Warn("The memory backend is not shared with the server; snapshots will not see its changes",
			"backend", cfg.DataBackend)
	}

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads and snapshots, so it publishes nothing.
	svc, err := cli.OpenLedger(context.Background(), cfg, logger, nil)
	if err != nil {
		amqpClient.Close()
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer svc.Close()
	defer amqpClient.Close()

	loc, _ := cfg.Location()
	w, err := worker.NewSnapshotWorker(svc, amqpClient, worker.Config{
		Schedule: cfg.SnapshotSchedule,
		Location: loc,
	}, logger)
	if err != nil {
		logger.Error("Failed to create snapshot worker", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Snapshot worker failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "snapshots_taken", w.SnapshotsTaken())
}
