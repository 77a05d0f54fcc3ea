package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"patrimonio/internal/cache"
	"patrimonio/internal/config"
	"patrimonio/internal/fmp"
	"patrimonio/internal/log"
	"patrimonio/internal/services"
	"patrimonio/internal/storage"
	"patrimonio/internal/worker"
)

func main() {
	// Load .env for local development, ignore errors in production.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel)})
	log.SetDefault(logger)

	logger.Info("starting quote worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.FMPAPIKey == "" {
		logger.Error("FMP_API_KEY not set, the quote worker cannot fetch market data")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	market := fmp.NewClient(cfg.FMPBaseURL, cfg.FMPAPIKey, logger)
	quoteCache := cache.NewLRU[fmp.CompanyFinancials](100, cfg.QuoteCacheTTL)
	quotes := services.NewQuoteService(quoteCache, repo, market, logger)

	refresher := worker.NewQuoteRefresher(quotes, cfg.TrackedTickers, cfg.QuoteInterval, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("quote refresher failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("quote worker stopped")
}
