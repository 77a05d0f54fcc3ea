package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"patrimonio/internal/amqp"
	"patrimonio/internal/config"
	"patrimonio/internal/log"
	gsheet "patrimonio/internal/sheets/google"
	"patrimonio/internal/storage"
	"patrimonio/internal/worker"
)

func main() {
	// Load .env for local development, ignore errors in production.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel)})
	log.SetDefault(logger)

	logger.Info("starting sync worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if !cfg.SheetsConfigured() {
		logger.Error("GOOGLE_SPREADSHEET_ID not set, the sync worker has no ledger to export to")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sheetsClient, err := gsheet.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, sheetsClient, cfg.SyncBatchSize, logger)

	// Catch up on anything that queued while the worker was down.
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("startup sync check failed", log.FieldError, err)
		// Keep going, the periodic pass will retry.
	}

	if cfg.AMQPURL != "" {
		go func() {
			handler := func(msg *amqp.TransactionSyncMessage) error {
				return syncWorker.HandleSyncMessage(ctx, msg)
			}
			err := amqp.ConsumeLoop(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger, handler)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("message consumption failed", log.FieldError, err)
			}
			cancel()
		}()
	} else {
		logger.Info("AMQP_URL not set, running on periodic catch-up only")
	}

	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.ProcessPending(ctx); err != nil {
					logger.Error("periodic sync failed", log.FieldError, err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	cancel()
	// Give in-flight exports a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("sync worker stopped")
}
