package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"khata/internal/amqp"
	"khata/internal/backend"
	"khata/internal/config"
	applog "khata/internal/log"
	"khata/internal/storage"
	"khata/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: "khata-worker"})
	applog.SetDefault(logger)

	logger.Info("Starting khata-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}

	storeCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	primary, err := backend.NewFactory(logger.Logger).CreateStore(context.Background(), storeCfg)
	if err != nil {
		logger.Error("Failed to open primary document store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer primary.Store.Close()

	backup, err := storage.NewFileStore(cfg.BackupDirectory)
	if err != nil {
		logger.Error("Failed to open backup store", "error", err, "directory", cfg.BackupDirectory)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirror := worker.NewMirrorWorker(primary.Store, backup)

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup mirror pass")
	if err := mirror.MirrorAll(ctx); err != nil {
		logger.Error("Startup mirror pass failed", "error", err)
		// Don't exit - continue with normal operation
	}

	go func() {
		for {
			err := amqpClient.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangeMessage) error {
				return mirror.HandleChange(ctx, msg)
			})
			if err == nil || ctx.Err() != nil {
				cancel()
				return
			}
			logger.Error("Message consumption failed, reconnecting", "error", err)
			if err := amqpClient.Reconnect(ctx); err != nil {
				logger.Error("Reconnect abandoned", "error", err)
				cancel()
				return
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight deliveries a moment to settle.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
