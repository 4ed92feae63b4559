// Package cli provides the initialization shared by the server, the worker
// and the admin tool.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"churchbook/internal/amqp"
	"churchbook/internal/backend"
	"churchbook/internal/config"
	"churchbook/internal/log"
	"churchbook/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logCfg := log.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.LogFormat
	logCfg.Component = component

	logger := log.New(logCfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadConfig is LoadAndValidateConfig for main packages: it prints the
// problems and exits.
func MustLoadConfig() *config.Config {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// NewAMQPClient connects when AMQP is configured. It returns nil, nil when
// AMQP is disabled.
func NewAMQPClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, change notifications off")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}
	logger.Info("Connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// OpenLedger opens the configured store and loads the ledger service on it.
// Closing the service closes the store and the publisher. Pass a nil
// interface, not a typed nil, when nothing publishes.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, pub services.Publisher) (*services.LedgerService, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	b, err := backend.NewOpener(logger).Open(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	tag, err := cfg.LanguageTag()
	if err != nil {
		_ = b.Store.Close()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		_ = b.Store.Close()
		return nil, err
	}

	opts := services.Options{
		Locale:        tag,
		Location:      loc,
		SnapshotLimit: cfg.SnapshotLimit,
		CacheSize:     cfg.SummaryCacheSize,
		CacheTTL:      cfg.SummaryCacheTTL,
		Publisher:     pub,
		Logger:        logger,
	}

	svc, err := services.NewLedgerService(ctx, b.Store, opts)
	if err != nil {
		_ = b.Store.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return svc, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout, and done is
// closed when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
