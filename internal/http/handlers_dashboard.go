package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, "dashboard.html", nil)
}

func (s *Server) getOverview(ctx context.Context) (core.DashboardOverview, error) {
	if ov, found := s.overviewCache.Get(overviewCacheKey); found {
		return ov, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	accounts, err := s.store.ListAccounts(cctx)
	if err != nil {
		return core.DashboardOverview{}, fmt.Errorf("list accounts: %w", err)
	}

	ov := core.Overview(accounts)
	s.overviewCache.Set(overviewCacheKey, ov)
	return ov, nil
}

// handleOverview renders the net worth summary partial.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ov, err := s.getOverview(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "overview error", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading overview</div>`))
		return
	}

	var maxCents int64
	for _, slice := range ov.Distribution {
		if slice.Value.Cents > maxCents {
			maxCents = slice.Value.Cents
		}
	}

	type slice struct {
		Name, Amount, Color string
		Width               int
	}
	data := struct {
		NetWorth     string
		Invested     string
		Cash         string
		InvestedPct  string
		LiquidityPct string
		Distribution []slice
	}{
		NetWorth:     formatEuros(ov.NetWorth.Cents),
		Invested:     formatEuros(ov.Invested.Cents),
		Cash:         formatEuros(ov.Cash.Cents),
		InvestedPct:  formatPercent(ov.InvestedPct),
		LiquidityPct: formatPercent(ov.LiquidityPct),
	}
	for _, sl := range ov.Distribution {
		width := 0
		if maxCents > 0 && sl.Value.Cents > 0 {
			width = int((sl.Value.Cents*100 + maxCents/2) / maxCents)
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Distribution = append(data.Distribution, slice{
			Name:   sl.Name,
			Amount: formatEuros(sl.Value.Cents),
			Color:  sl.Color,
			Width:  width,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "overview.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "overview template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering overview</div>`))
	}
}

// handleUpcomingEvents renders budget periods starting or ending soon.
func (s *Server) handleUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list budgets error", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading events</div>`))
		return
	}

	now := time.Now()
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	events := core.UpcomingEvents(budgets, today, 14)

	type eventView struct {
		Name, Date, Kind string
	}
	data := struct {
		Events []eventView
	}{}
	for _, e := range events {
		data.Events = append(data.Events, eventView{
			Name: e.Name,
			Date: e.Date.String(),
			Kind: e.Kind,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "events.html", data); err != nil {
		s.logger.ErrorContext(ctx, "events template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering events</div>`))
	}
}

// handleRecentTransactions renders the latest ledger entries.
func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	transactions, err := s.store.ListRecentTransactions(ctx, 10)
	if err != nil {
		s.logger.ErrorContext(ctx, "list recent transactions error", log.FieldError, err)
		transactions = nil
	}
	names := s.categoryNames(ctx)

	type txView struct {
		ID       string
		Date     string
		Payee    string
		Category string
		Amount   string
		Expense  bool
	}
	data := struct {
		Transactions []txView
	}{}
	for _, t := range transactions {
		data.Transactions = append(data.Transactions, txView{
			ID:       t.ID,
			Date:     t.Date.Format("02/01"),
			Payee:    t.Payee,
			Category: names[t.CategoryID],
			Amount:   formatEuros(t.Amount.Cents),
			Expense:  t.Amount.Negative(),
		})
	}

	if err := s.templates.ExecuteTemplate(w, "transactions.html", data); err != nil {
		s.logger.ErrorContext(ctx, "transactions template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering transactions</div>`))
	}
}

// categoryNames maps category IDs to display names, degrading to an empty
// map when the lookup fails so partials still render.
func (s *Server) categoryNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "list categories error", log.FieldError, err)
		return names
	}
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}
