// Package http serves the dashboard UI: server-rendered pages with HTMX
// partials for accounts, budgets, transactions and stock valuations.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"patrimonio/internal/cache"
	"patrimonio/internal/core"
	"patrimonio/internal/fmp"
	"patrimonio/internal/log"
	appweb "patrimonio/web"
)

// Store is the repository surface the handlers read and write.
type Store interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	UpdateBudgetItem(ctx context.Context, itemID string, allocated core.Money) error

	ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)

	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionRecorder saves and removes ledger transactions, queueing the
// spreadsheet export behind the scenes.
type TransactionRecorder interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// QuoteLookup resolves a ticker to current fundamentals.
type QuoteLookup interface {
	Lookup(ctx context.Context, ticker string) (*fmp.CompanyFinancials, error)
}

type Server struct {
	http.Server
	templates   *template.Template
	store       Store
	ledger      TransactionRecorder
	quotes      QuoteLookup
	logger      *log.Logger
	rateLimiter *rateLimiter

	overviewCache *cache.LRU[core.DashboardOverview]
	reconCache    *cache.LRU[core.ReconciliationResult]

	shutdownOnce sync.Once
}

const overviewCacheKey = "overview"

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, store Store, ledger TransactionRecorder, quotes QuoteLookup, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:         store,
		ledger:        ledger,
		quotes:        quotes,
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(),
		overviewCache: cache.NewLRU[core.DashboardOverview](10, 5*time.Minute),
		reconCache:    cache.NewLRU[core.ReconciliationResult](100, 5*time.Minute),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	// Pages
	mux.HandleFunc("/", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/accounts", s.withSecurityHeaders(s.handleAccountsPage))
	mux.HandleFunc("/budgets", s.withSecurityHeaders(s.handleBudgetsPage))
	mux.HandleFunc("/valuation", s.withSecurityHeaders(s.handleValuationPage))

	// Mutations
	mux.HandleFunc("/accounts/save", s.withSecurityHeaders(s.handleSaveAccount))
	mux.HandleFunc("/accounts/delete", s.withSecurityHeaders(s.handleDeleteAccount))
	mux.HandleFunc("/budgets/save", s.withSecurityHeaders(s.handleSaveBudget))
	mux.HandleFunc("/budgets/delete", s.withSecurityHeaders(s.handleDeleteBudget))
	mux.HandleFunc("/budgets/items/save", s.withSecurityHeaders(s.handleSaveBudgetItem))
	mux.HandleFunc("/categories/save", s.withSecurityHeaders(s.handleSaveCategory))
	mux.HandleFunc("/categories/delete", s.withSecurityHeaders(s.handleDeleteCategory))
	mux.HandleFunc("/transactions/save", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.handleDeleteTransaction))

	// UI partials
	mux.HandleFunc("/ui/overview", s.withSecurityHeaders(s.handleOverview))
	mux.HandleFunc("/ui/events", s.withSecurityHeaders(s.handleUpcomingEvents))
	mux.HandleFunc("/ui/accounts", s.withSecurityHeaders(s.handleAccountsList))
	mux.HandleFunc("/ui/budgets", s.withSecurityHeaders(s.handleBudgetsList))
	mux.HandleFunc("/ui/reconciliation", s.withSecurityHeaders(s.handleReconciliation))
	mux.HandleFunc("/ui/transactions", s.withSecurityHeaders(s.handleRecentTransactions))
	mux.HandleFunc("/ui/valuation", s.withSecurityHeaders(s.handleValuation))
	mux.HandleFunc("/ui/scenarios", s.withSecurityHeaders(s.handleScenarios))

	return s
}

// RegisterCaches adds the response caches to a cleanup manager.
func (s *Server) RegisterCaches(m *cache.Manager) {
	m.Register(s.overviewCache)
	m.Register(s.reconCache)
}

// Shutdown stops the rate limiter and the underlying HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) invalidateOverview() {
	s.overviewCache.Delete(overviewCacheKey)
}

// invalidateReconciliations drops every cached reconciliation. A transaction
// can fall inside any number of budget windows, so there is no cheaper
// per-budget invalidation.
func (s *Server) invalidateReconciliations() {
	s.reconCache.Clear()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a template, reporting a 500 on failure. Partials that
// prefer a placeholder over an error page handle failures themselves.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.ErrorContext(r.Context(), "template execution failed",
			"template", name,
			log.FieldError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
