package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"patrimonio/internal/cache"
	"patrimonio/internal/fmp"
	"patrimonio/internal/storage"
)

type fakeMarket struct {
	fins    map[string]*fmp.CompanyFinancials
	fail    error
	lookups int
}

func (f *fakeMarket) Lookup(_ context.Context, ticker string) (*fmp.CompanyFinancials, error) {
	f.lookups++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.fins[ticker], nil
}

type fakeQuoteStore struct {
	quotes map[string]storage.Quote
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{quotes: make(map[string]storage.Quote)}
}

func (f *fakeQuoteStore) UpsertQuote(_ context.Context, q storage.Quote) error {
	f.quotes[q.Ticker] = q
	return nil
}

func (f *fakeQuoteStore) GetQuote(_ context.Context, ticker string) (storage.Quote, error) {
	q, ok := f.quotes[ticker]
	if !ok {
		return storage.Quote{}, storage.ErrNotFound
	}
	return q, nil
}

func adbe() *fmp.CompanyFinancials {
	return &fmp.CompanyFinancials{
		Ticker:       "ADBE",
		CompanyName:  "Adobe Inc.",
		CurrentPrice: 480,
		EPSTTM:       15.18,
		PERatioTTM:   31.6,
	}
}

func newQuoteService(market MarketData, store QuoteStore) *QuoteService {
	return NewQuoteService(cache.NewLRU[fmp.CompanyFinancials](16, time.Minute), store, market, testLogger())
}

func TestQuoteLookupCachesAndPersists(t *testing.T) {
	market := &fakeMarket{fins: map[string]*fmp.CompanyFinancials{"ADBE": adbe()}}
	store := newFakeQuoteStore()
	svc := newQuoteService(market, store)
	ctx := context.Background()

	fin, err := svc.Lookup(ctx, "adbe")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if fin == nil || fin.CompanyName != "Adobe Inc." {
		t.Fatalf("unexpected result: %+v", fin)
	}
	if _, ok := store.quotes["ADBE"]; !ok {
		t.Fatalf("quote not persisted")
	}

	// Second lookup is served from cache.
	if _, err := svc.Lookup(ctx, "ADBE"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if market.lookups != 1 {
		t.Fatalf("market lookups = %d, want 1 (cache hit)", market.lookups)
	}
}

func TestQuoteLookupUnknownTicker(t *testing.T) {
	market := &fakeMarket{fins: map[string]*fmp.CompanyFinancials{}}
	svc := newQuoteService(market, newFakeQuoteStore())

	fin, err := svc.Lookup(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if fin != nil {
		t.Fatalf("expected nil for unknown ticker, got %+v", fin)
	}
}

func TestQuoteLookupFallsBackToStore(t *testing.T) {
	market := &fakeMarket{fail: errors.New("api down")}
	store := newFakeQuoteStore()
	store.quotes["ADBE"] = storage.Quote{Ticker: "ADBE", CompanyName: "Adobe Inc.", Price: 470, EPSTTM: 15}
	svc := newQuoteService(market, store)

	fin, err := svc.Lookup(context.Background(), "ADBE")
	if err != nil {
		t.Fatalf("Lookup should use the stored snapshot, got %v", err)
	}
	if fin.CurrentPrice != 470 {
		t.Fatalf("price = %v, want stored 470", fin.CurrentPrice)
	}
}

func TestQuoteLookupFailsWithoutSnapshot(t *testing.T) {
	market := &fakeMarket{fail: errors.New("api down")}
	svc := newQuoteService(market, newFakeQuoteStore())

	if _, err := svc.Lookup(context.Background(), "ADBE"); err == nil {
		t.Fatalf("expected error when API is down and no snapshot exists")
	}
}

func TestQuoteRefresh(t *testing.T) {
	market := &fakeMarket{fins: map[string]*fmp.CompanyFinancials{"ADBE": adbe()}}
	store := newFakeQuoteStore()
	svc := newQuoteService(market, store)
	ctx := context.Background()

	if err := svc.Refresh(ctx, "ADBE"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if q, ok := store.quotes["ADBE"]; !ok || q.Price != 480 {
		t.Fatalf("snapshot = %+v, want persisted price 480", q)
	}

	// Unknown tracked tickers are logged, not fatal.
	if err := svc.Refresh(ctx, "NOPE"); err != nil {
		t.Fatalf("Refresh of unknown ticker should not error, got %v", err)
	}
}
