// Package storage persists the domain model in SQLite. The repository
// mints UUIDs for new rows and keeps sync bookkeeping for the ledger
// export pipeline.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"patrimonio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Sync states of a transaction in the ledger export pipeline.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "sync_error"
)

// Quote is a persisted market-data snapshot for one ticker.
type Quote struct {
	Ticker      string
	CompanyName string
	Price       float64
	EPSTTM      float64
	PETTM       float64
	MarketCap   float64
	FetchedAt   time.Time
}

// PendingSyncTransaction is the minimal row handed to the sync queue.
type PendingSyncTransaction struct {
	ID        string
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Description)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res)
}

// Budgets

// CreateBudget stores the budget and its items, minting IDs for both.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	for i := range b.Items {
		b.Items[i].ID = uuid.NewString()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Budget{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO budgets (id, name, start_date, end_date) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, b.Start.String(), b.End.String())
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	for _, item := range b.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO budget_items (id, budget_id, category_id, allocated_cents) VALUES (?, ?, ?, ?)`,
			item.ID, b.ID, item.CategoryID, item.Allocated.Cents)
		if err != nil {
			return core.Budget{}, fmt.Errorf("create budget item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Budget{}, fmt.Errorf("commit budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	var (
		b          core.Budget
		start, end string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date FROM budgets WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	if b.Start, err = core.ParseDate(start); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget start: %w", err)
	}
	if b.End, err = core.ParseDate(end); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget end: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, allocated_cents FROM budget_items WHERE budget_id = ? ORDER BY rowid`, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item core.BudgetItem
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.Allocated.Cents); err != nil {
			return core.Budget{}, fmt.Errorf("scan budget item: %w", err)
		}
		b.Items = append(b.Items, item)
	}
	return b, rows.Err()
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM budgets ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan budget id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	budgets := make([]core.Budget, 0, len(ids))
	for _, id := range ids {
		b, err := r.GetBudget(ctx, id)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) UpdateBudgetItem(ctx context.Context, itemID string, allocated core.Money) error {
	if allocated.Cents < 0 {
		return core.ErrInvalidAmount
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE budget_items SET allocated_cents = ? WHERE id = ?`, allocated.Cents, itemID)
	if err != nil {
		return fmt.Errorf("update budget item: %w", err)
	}
	return requireAffected(res)
}

// Transactions

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, category_id, tx_date, payee, description, amount_cents, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CategoryID, t.Date.String(), t.Payee, t.Description, t.Amount.Cents, SyncPending)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var (
		t    core.Transaction
		date string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, category_id, tx_date, payee, description, amount_cents
		 FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.CategoryID, &date, &t.Payee, &t.Description, &t.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions dated inside [from, to], newest
// first. Budget reconciliation feeds a budget's window here.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, tx_date, payee, description, amount_cents
		 FROM transactions
		 WHERE tx_date >= ? AND tx_date <= ?
		 ORDER BY tx_date DESC, created_at DESC`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, tx_date, payee, description, amount_cents
		 FROM transactions
		 ORDER BY tx_date DESC, created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

// GetPendingSyncTransactions returns transactions waiting for ledger
// export, oldest first so the sheet stays chronological.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions
		 WHERE sync_status = ?
		 ORDER BY created_at ASC
		 LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, SyncSynced)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, SyncError)
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("set sync status %s: %w", status, err)
	}
	return requireAffected(res)
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.ID = uuid.NewString()
	a.Type = core.NormalizeAccountType(string(a.Type))
	if a.Color == "" {
		a.Color = core.AccountColor(a.Name)
	}
	a.LastUpdated = time.Now().UTC()
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, balance_cents, type, color, active, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance.Cents, string(a.Type), a.Color, boolToInt(a.Active), a.LastUpdated)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	a.Type = core.NormalizeAccountType(string(a.Type))
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET name = ?, balance_cents = ?, type = ?, color = ?, active = ?, last_updated = ?
		 WHERE id = ?`,
		a.Name, a.Balance.Cents, string(a.Type), a.Color, boolToInt(a.Active), time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var (
		a      core.Account
		atype  string
		active int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, balance_cents, type, color, active, last_updated
		 FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Balance.Cents, &atype, &a.Color, &active, &a.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Type = core.AccountType(atype)
	a.Active = active != 0
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance_cents, type, color, active, last_updated
		 FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a      core.Account
			atype  string
			active int
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents, &atype, &a.Color, &active, &a.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(atype)
		a.Active = active != 0
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(res)
}

// Quotes

func (r *SQLiteRepository) UpsertQuote(ctx context.Context, q Quote) error {
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quotes (ticker, company_name, price, eps_ttm, pe_ttm, market_cap, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
		   company_name = excluded.company_name,
		   price = excluded.price,
		   eps_ttm = excluded.eps_ttm,
		   pe_ttm = excluded.pe_ttm,
		   market_cap = excluded.market_cap,
		   fetched_at = excluded.fetched_at`,
		q.Ticker, q.CompanyName, q.Price, q.EPSTTM, q.PETTM, q.MarketCap, q.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert quote: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetQuote(ctx context.Context, ticker string) (Quote, error) {
	var q Quote
	err := r.db.QueryRowContext(ctx,
		`SELECT ticker, company_name, price, eps_ttm, pe_ttm, market_cap, fetched_at
		 FROM quotes WHERE ticker = ?`, ticker).
		Scan(&q.Ticker, &q.CompanyName, &q.Price, &q.EPSTTM, &q.PETTM, &q.MarketCap, &q.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	return q, nil
}

func (r *SQLiteRepository) ListQuotes(ctx context.Context) ([]Quote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker, company_name, price, eps_ttm, pe_ttm, market_cap, fetched_at
		 FROM quotes ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.Ticker, &q.CompanyName, &q.Price, &q.EPSTTM, &q.PETTM, &q.MarketCap, &q.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.CategoryID, &date, &t.Payee, &t.Description, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		t.Date = d
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
