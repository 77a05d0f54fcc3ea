package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"patrimonio/internal/log"
)

// QuoteRefresher keeps snapshots of the tracked tickers warm by fetching
// them on a fixed interval.
type QuoteRefresher struct {
	quotes   Refresher
	tickers  []string
	interval time.Duration
	logger   *log.Logger
}

// Refresher re-fetches and persists a single ticker.
type Refresher interface {
	Refresh(ctx context.Context, ticker string) error
}

func NewQuoteRefresher(quotes Refresher, tickers []string, interval time.Duration, logger *log.Logger) *QuoteRefresher {
	return &QuoteRefresher{
		quotes:   quotes,
		tickers:  tickers,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentQuotes),
	}
}

// Run refreshes immediately, then on every tick, until ctx is done.
func (r *QuoteRefresher) Run(ctx context.Context) error {
	if len(r.tickers) == 0 {
		r.logger.InfoContext(ctx, "no tracked tickers, quote refresher idle")
		<-ctx.Done()
		return ctx.Err()
	}

	r.refreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *QuoteRefresher) refreshAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, ticker := range r.tickers {
		g.Go(func() error {
			if err := r.quotes.Refresh(gctx, ticker); err != nil {
				// One failing ticker must not stop the others.
				r.logger.ErrorContext(gctx, "quote refresh failed",
					log.FieldTicker, ticker,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.InfoContext(ctx, "quote refresh cycle complete", "tickers", len(r.tickers))
}
