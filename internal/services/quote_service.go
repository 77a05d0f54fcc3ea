package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"patrimonio/internal/cache"
	"patrimonio/internal/fmp"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

// MarketData fetches live fundamentals for a ticker.
type MarketData interface {
	Lookup(ctx context.Context, ticker string) (*fmp.CompanyFinancials, error)
}

// QuoteStore persists quote snapshots between fetches.
type QuoteStore interface {
	UpsertQuote(ctx context.Context, q storage.Quote) error
	GetQuote(ctx context.Context, ticker string) (storage.Quote, error)
}

// QuoteService answers ticker lookups through three layers: the in-memory
// LRU, then the live API, then the last persisted snapshot when the API
// is down or not configured.
type QuoteService struct {
	cache  *cache.LRU[fmp.CompanyFinancials]
	store  QuoteStore
	market MarketData
	logger *log.Logger
}

func NewQuoteService(c *cache.LRU[fmp.CompanyFinancials], store QuoteStore, market MarketData, logger *log.Logger) *QuoteService {
	return &QuoteService{
		cache:  c,
		store:  store,
		market: market,
		logger: logger.WithComponent(log.ComponentQuotes),
	}
}

// Lookup resolves fundamentals for a ticker. A nil result with nil error
// means the ticker is unknown.
func (s *QuoteService) Lookup(ctx context.Context, ticker string) (*fmp.CompanyFinancials, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if fin, ok := s.cache.Get(ticker); ok {
		return &fin, nil
	}

	fin, err := s.market.Lookup(ctx, ticker)
	if err != nil {
		s.logger.WarnContext(ctx, "live lookup failed, trying stored snapshot",
			log.FieldTicker, ticker,
			log.FieldError, err)
		return s.fromStore(ctx, ticker, err)
	}
	if fin == nil {
		return nil, nil
	}

	s.cache.Set(ticker, *fin)
	if err := s.store.UpsertQuote(ctx, toQuote(*fin)); err != nil {
		s.logger.WarnContext(ctx, "failed to persist quote",
			log.FieldTicker, ticker,
			log.FieldError, err)
	}
	return fin, nil
}

// Refresh forces a live fetch and persists the snapshot. Used by the
// quote worker for tracked tickers.
func (s *QuoteService) Refresh(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	fin, err := s.market.Lookup(ctx, ticker)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", ticker, err)
	}
	if fin == nil {
		s.logger.WarnContext(ctx, "tracked ticker not found", log.FieldTicker, ticker)
		return nil
	}
	s.cache.Set(ticker, *fin)
	if err := s.store.UpsertQuote(ctx, toQuote(*fin)); err != nil {
		return fmt.Errorf("persist quote %s: %w", ticker, err)
	}
	return nil
}

func (s *QuoteService) fromStore(ctx context.Context, ticker string, lookupErr error) (*fmp.CompanyFinancials, error) {
	q, err := s.store.GetQuote(ctx, ticker)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", ticker, lookupErr)
	}
	if err != nil {
		return nil, fmt.Errorf("read stored quote %s: %w", ticker, err)
	}

	fin := fmp.CompanyFinancials{
		Ticker:       q.Ticker,
		CompanyName:  q.CompanyName,
		CurrentPrice: q.Price,
		EPSTTM:       q.EPSTTM,
		PERatioTTM:   q.PETTM,
		MarketCap:    q.MarketCap,
	}
	s.cache.Set(ticker, fin)
	return &fin, nil
}

func toQuote(fin fmp.CompanyFinancials) storage.Quote {
	return storage.Quote{
		Ticker:      fin.Ticker,
		CompanyName: fin.CompanyName,
		Price:       fin.CurrentPrice,
		EPSTTM:      fin.EPSTTM,
		PETTM:       fin.PERatioTTM,
		MarketCap:   fin.MarketCap,
		FetchedAt:   time.Now().UTC(),
	}
}
