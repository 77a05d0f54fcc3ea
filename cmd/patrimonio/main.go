package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"patrimonio/internal/amqp"
	"patrimonio/internal/cache"
	"patrimonio/internal/config"
	"patrimonio/internal/fmp"
	apphttp "patrimonio/internal/http"
	"patrimonio/internal/log"
	"patrimonio/internal/services"
	"patrimonio/internal/storage"
)

func main() {
	// Load .env for local development, ignore errors in production.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel)})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// The broker is optional for the web server. Without it transactions
	// stay pending until the sync worker's catch-up pass picks them up.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, relying on sync catch-up", log.FieldError, err)
		} else {
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP_URL not set, sync messages disabled")
	}

	ledger := services.NewLedgerService(repo, publisher, logger)
	defer ledger.Close()

	quoteCache := cache.NewLRU[fmp.CompanyFinancials](100, cfg.QuoteCacheTTL)
	var quotes apphttp.QuoteLookup
	if cfg.FMPAPIKey != "" {
		market := fmp.NewClient(cfg.FMPBaseURL, cfg.FMPAPIKey, logger)
		quotes = services.NewQuoteService(quoteCache, repo, market, logger)
	} else {
		logger.Info("FMP_API_KEY not set, valuation lookups disabled")
	}

	srv := apphttp.NewServer(":"+cfg.Port, repo, ledger, quotes, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(quoteCache)
	srv.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting patrimonio server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}
