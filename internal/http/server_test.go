package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"patrimonio/internal/core"
	"patrimonio/internal/fmp"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError})
}

type fakeStore struct {
	categories   []core.Category
	budgets      []core.Budget
	transactions []core.Transaction
	accounts     []core.Account

	createdAccounts     []core.Account
	createdBudgets      []core.Budget
	deletedAccounts     []string
	listTransactionsHit int
}

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.ID = "cat-new"
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeStore) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, id string) error {
	for _, c := range f.categories {
		if c.ID == id {
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	b.ID = "budget-new"
	f.createdBudgets = append(f.createdBudgets, b)
	f.budgets = append(f.budgets, b)
	return b, nil
}

func (f *fakeStore) GetBudget(_ context.Context, id string) (core.Budget, error) {
	for _, b := range f.budgets {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Budget{}, storage.ErrNotFound
}

func (f *fakeStore) ListBudgets(_ context.Context) ([]core.Budget, error) {
	return f.budgets, nil
}

func (f *fakeStore) DeleteBudget(_ context.Context, id string) error {
	for _, b := range f.budgets {
		if b.ID == id {
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) UpdateBudgetItem(_ context.Context, itemID string, _ core.Money) error {
	for _, b := range f.budgets {
		for _, item := range b.Items {
			if item.ID == itemID {
				return nil
			}
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ListTransactions(_ context.Context, from, to core.Date) ([]core.Transaction, error) {
	f.listTransactionsHit++
	var out []core.Transaction
	for _, t := range f.transactions {
		if t.Date.Within(from, to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecentTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	if limit > len(f.transactions) {
		limit = len(f.transactions)
	}
	return f.transactions[:limit], nil
}

func (f *fakeStore) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	a.ID = "acct-new"
	f.createdAccounts = append(f.createdAccounts, a)
	f.accounts = append(f.accounts, a)
	return a, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, a core.Account) error {
	for _, existing := range f.accounts {
		if existing.ID == a.ID {
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (core.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, storage.ErrNotFound
}

func (f *fakeStore) ListAccounts(_ context.Context) ([]core.Account, error) {
	return f.accounts, nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) error {
	for _, a := range f.accounts {
		if a.ID == id {
			f.deletedAccounts = append(f.deletedAccounts, id)
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeRecorder struct {
	created []core.Transaction
	deleted []string
}

func (f *fakeRecorder) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = "tx-new"
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeRecorder) DeleteTransaction(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeQuotes struct {
	fins map[string]*fmp.CompanyFinancials
}

func (f *fakeQuotes) Lookup(_ context.Context, ticker string) (*fmp.CompanyFinancials, error) {
	return f.fins[ticker], nil
}

func newTestServer(store *fakeStore, ledger *fakeRecorder, quotes *fakeQuotes) *Server {
	return NewServer(":0", store, ledger, quotes, testLogger())
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(t *testing.T, srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRecorder{}, &fakeQuotes{})

	rr := get(t, srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Dashboard") {
		t.Fatalf("index body missing navigation")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(t, srv, path); rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestOverviewPartial(t *testing.T) {
	store := &fakeStore{accounts: []core.Account{
		{ID: "a1", Name: "Brokerage", Balance: core.Money{Cents: 130000}, Type: core.AccountInvestment, Active: true},
		{ID: "a2", Name: "Checking", Balance: core.Money{Cents: 60000}, Type: core.AccountCash, Active: true},
	}}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	rr := get(t, srv, "/ui/overview")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "€1900.00") {
		t.Fatalf("body missing net worth: %s", body)
	}
	if !strings.Contains(body, "Brokerage") {
		t.Fatalf("body missing account slice")
	}
}

func TestSaveAccountValidationAndSuccess(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	rr := get(t, srv, "/accounts/save")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr = postForm(t, srv, "/accounts/save", url.Values{
		"name": {"Checking"}, "balance": {"abc"}, "type": {"cash"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad balance, got %d", rr.Code)
	}

	rr = postForm(t, srv, "/accounts/save", url.Values{
		"name": {"Checking"}, "balance": {"600.00"}, "type": {"cash"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.createdAccounts) != 1 {
		t.Fatalf("created = %d, want 1", len(store.createdAccounts))
	}
	created := store.createdAccounts[0]
	if created.Balance.Cents != 60000 || created.Type != core.AccountCash {
		t.Fatalf("unexpected account: %+v", created)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"account:saved"`) || !strings.Contains(trigger, `"overview:refresh"`) {
		t.Fatalf("HX-Trigger = %s", trigger)
	}
}

func TestDeleteAccountJSONBody(t *testing.T) {
	store := &fakeStore{accounts: []core.Account{
		{ID: "a1", Name: "Checking", Type: core.AccountCash, Active: true},
	}}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/accounts/delete", strings.NewReader(`{"id": "a1"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.deletedAccounts) != 1 || store.deletedAccounts[0] != "a1" {
		t.Fatalf("deleted = %v, want [a1]", store.deletedAccounts)
	}
}

func TestCreateTransactionSignsExpense(t *testing.T) {
	ledger := &fakeRecorder{}
	store := &fakeStore{categories: []core.Category{{ID: "cat1", Name: "Groceries"}}}
	srv := newTestServer(store, ledger, &fakeQuotes{})

	rr := postForm(t, srv, "/transactions/save", url.Values{
		"date":        {"2024-03-05"},
		"payee":       {"Grocery Store"},
		"amount":      {"12.34"},
		"category_id": {"cat1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if len(ledger.created) != 1 {
		t.Fatalf("created = %d, want 1", len(ledger.created))
	}
	if got := ledger.created[0].Amount.Cents; got != -1234 {
		t.Fatalf("amount = %d, want -1234 (expenses are negative)", got)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"transaction:created"`) {
		t.Fatalf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
}

func TestCreateTransactionKeepsIncomePositive(t *testing.T) {
	ledger := &fakeRecorder{}
	srv := newTestServer(&fakeStore{}, ledger, &fakeQuotes{})

	rr := postForm(t, srv, "/transactions/save", url.Values{
		"date":        {"2024-03-05"},
		"payee":       {"Employer"},
		"amount":      {"2500.00"},
		"kind":        {"income"},
		"category_id": {"cat1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := ledger.created[0].Amount.Cents; got != 250000 {
		t.Fatalf("amount = %d, want 250000", got)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeRecorder{}, &fakeQuotes{})

	// Missing payee
	rr := postForm(t, srv, "/transactions/save", url.Values{
		"amount": {"12.34"}, "category_id": {"cat1"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without payee, got %d", rr.Code)
	}

	// Bad amount
	rr = postForm(t, srv, "/transactions/save", url.Values{
		"payee": {"x"}, "amount": {"abc"}, "category_id": {"cat1"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad amount, got %d", rr.Code)
	}
}

func TestReconciliationPartialAndCache(t *testing.T) {
	store := &fakeStore{
		categories: []core.Category{{ID: "cat1", Name: "Groceries"}},
		budgets: []core.Budget{{
			ID:    "b1",
			Name:  "March",
			Start: core.NewDate(2024, 3, 1),
			End:   core.NewDate(2024, 3, 31),
			Items: []core.BudgetItem{{ID: "bi1", CategoryID: "cat1", Allocated: core.Money{Cents: 20000}}},
		}},
		transactions: []core.Transaction{
			{ID: "t1", CategoryID: "cat1", Date: core.NewDate(2024, 3, 5), Payee: "Store", Amount: core.Money{Cents: -5000}},
		},
	}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	rr := get(t, srv, "/ui/reconciliation?id=b1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Groceries") || !strings.Contains(body, "€50.00") {
		t.Fatalf("body missing reconciliation rows: %s", body)
	}

	// Second request is served from the cache.
	get(t, srv, "/ui/reconciliation?id=b1")
	if store.listTransactionsHit != 1 {
		t.Fatalf("transaction listings = %d, want 1 (cache hit)", store.listTransactionsHit)
	}

	rr = get(t, srv, "/ui/reconciliation?id=ghost")
	if !strings.Contains(rr.Body.String(), "Budget not found") {
		t.Fatalf("expected not-found placeholder, got %s", rr.Body.String())
	}
}

func TestCategoryMutationsInvalidateReconciliation(t *testing.T) {
	store := &fakeStore{
		categories: []core.Category{{ID: "cat1", Name: "Groceries"}},
		budgets: []core.Budget{{
			ID:    "b1",
			Name:  "March",
			Start: core.NewDate(2024, 3, 1),
			End:   core.NewDate(2024, 3, 31),
			Items: []core.BudgetItem{{ID: "bi1", CategoryID: "cat1", Allocated: core.Money{Cents: 20000}}},
		}},
		transactions: []core.Transaction{
			{ID: "t1", CategoryID: "cat1", Date: core.NewDate(2024, 3, 5), Payee: "Store", Amount: core.Money{Cents: -5000}},
		},
	}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	// Warm the cache, cached partials resolve category names.
	get(t, srv, "/ui/reconciliation?id=b1")
	if store.listTransactionsHit != 1 {
		t.Fatalf("transaction listings = %d, want 1", store.listTransactionsHit)
	}

	rr := postForm(t, srv, "/categories/save", url.Values{"name": {"Transport"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("save category status = %d: %s", rr.Code, rr.Body.String())
	}
	get(t, srv, "/ui/reconciliation?id=b1")
	if store.listTransactionsHit != 2 {
		t.Fatalf("transaction listings = %d, want 2 after category save", store.listTransactionsHit)
	}

	rr = postForm(t, srv, "/categories/delete", url.Values{"id": {"cat1"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("delete category status = %d: %s", rr.Code, rr.Body.String())
	}
	get(t, srv, "/ui/reconciliation?id=b1")
	if store.listTransactionsHit != 3 {
		t.Fatalf("transaction listings = %d, want 3 after category delete", store.listTransactionsHit)
	}
}

func TestValuationPartial(t *testing.T) {
	quotes := &fakeQuotes{fins: map[string]*fmp.CompanyFinancials{
		"ADBE": {Ticker: "ADBE", CompanyName: "Adobe Inc.", CurrentPrice: 480, EPSTTM: 15.18, PERatioTTM: 31.6},
	}}
	srv := newTestServer(&fakeStore{}, &fakeRecorder{}, quotes)

	rr := get(t, srv, "/ui/valuation?ticker=adbe&growth=9&multiple=20&return=12&years=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Adobe Inc.") {
		t.Fatalf("body missing company: %s", body)
	}
	if !strings.Contains(body, "Year 5") {
		t.Fatalf("body missing projection series: %s", body)
	}

	rr = get(t, srv, "/ui/valuation?ticker=NOPE")
	if !strings.Contains(rr.Body.String(), "Unknown ticker") {
		t.Fatalf("expected unknown-ticker placeholder, got %s", rr.Body.String())
	}

	rr = get(t, srv, "/ui/valuation")
	if !strings.Contains(rr.Body.String(), "Enter a ticker") {
		t.Fatalf("expected prompt placeholder, got %s", rr.Body.String())
	}
}

func TestScenariosPartial(t *testing.T) {
	quotes := &fakeQuotes{fins: map[string]*fmp.CompanyFinancials{
		"ADBE": {Ticker: "ADBE", CompanyName: "Adobe Inc.", CurrentPrice: 480, EPSTTM: 15.18},
		"LOSS": {Ticker: "LOSS", CompanyName: "Red Ink Corp", CurrentPrice: 10, EPSTTM: -2},
	}}
	srv := newTestServer(&fakeStore{}, &fakeRecorder{}, quotes)

	rr := get(t, srv, "/ui/scenarios?ticker=ADBE&growth=9")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "22.5x") {
		t.Fatalf("body missing multiple header: %s", rr.Body.String())
	}

	// Negative earnings cannot drive a multiple-based scenario table.
	rr = get(t, srv, "/ui/scenarios?ticker=LOSS")
	if !strings.Contains(rr.Body.String(), "positive earnings") {
		t.Fatalf("expected guard placeholder, got %s", rr.Body.String())
	}
}

func TestSaveBudgetParsesItems(t *testing.T) {
	store := &fakeStore{categories: []core.Category{
		{ID: "cat1", Name: "Groceries"},
		{ID: "cat2", Name: "Transport"},
	}}
	srv := newTestServer(store, &fakeRecorder{}, &fakeQuotes{})

	rr := postForm(t, srv, "/budgets/save", url.Values{
		"name":        {"March"},
		"start":       {"2024-03-01"},
		"end":         {"2024-03-31"},
		"category_id": {"cat1", "cat2"},
		"allocated":   {"200.00", ""},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.createdBudgets) != 1 {
		t.Fatalf("created = %d, want 1", len(store.createdBudgets))
	}
	items := store.createdBudgets[0].Items
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Allocated.Cents != 20000 || items[1].Allocated.Cents != 0 {
		t.Fatalf("allocations = %d, %d; want 20000, 0", items[0].Allocated.Cents, items[1].Allocated.Cents)
	}

	// Reversed dates are rejected.
	rr = postForm(t, srv, "/budgets/save", url.Values{
		"name": {"Bad"}, "start": {"2024-03-31"}, "end": {"2024-03-01"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for reversed dates, got %d", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < rateLimitPerMinute; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatalf("request over the limit should be denied")
	}
	// Other clients are unaffected.
	if !rl.allow("5.6.7.8") {
		t.Fatalf("separate client should be allowed")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"trusted proxy forwards", "127.0.0.1:1234", "203.0.113.9", "203.0.113.9"},
		{"untrusted peer cannot spoof", "203.0.113.7:1234", "10.0.0.1", "203.0.113.7"},
		{"invalid forwarded value ignored", "127.0.0.1:1234", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
