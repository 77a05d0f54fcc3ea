package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"patrimonio/internal/amqp"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError})
}

type fakeSyncStore struct {
	txs        map[string]core.Transaction
	categories []core.Category
	pending    []storage.PendingSyncTransaction
	synced     []string
	errored    []string
}

func (f *fakeSyncStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	t, ok := f.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeSyncStore) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeSyncStore) GetPendingSyncTransactions(_ context.Context, limit int) ([]storage.PendingSyncTransaction, error) {
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeSyncStore) MarkSynced(_ context.Context, id string) error {
	f.synced = append(f.synced, id)
	return nil
}

func (f *fakeSyncStore) MarkSyncError(_ context.Context, id string) error {
	f.errored = append(f.errored, id)
	return nil
}

type fakeLedger struct {
	rows []string
	fail error
}

func (f *fakeLedger) Append(_ context.Context, t core.Transaction, categoryName string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.rows = append(f.rows, t.ID+"/"+categoryName)
	return "Ledger!A2:E2", nil
}

func syncStoreWithTx() *fakeSyncStore {
	return &fakeSyncStore{
		txs: map[string]core.Transaction{
			"tx-1": {
				ID:         "tx-1",
				CategoryID: "cat1",
				Date:       core.NewDate(2024, 3, 5),
				Payee:      "Grocery Store",
				Amount:     core.Money{Cents: -5000},
			},
		},
		categories: []core.Category{{ID: "cat1", Name: "Groceries"}},
	}
}

func TestHandleSyncMessage(t *testing.T) {
	store := syncStoreWithTx()
	ledger := &fakeLedger{}
	w := NewSyncWorker(store, ledger, 10, testLogger())

	err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("tx-1"))
	if err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if len(ledger.rows) != 1 || ledger.rows[0] != "tx-1/Groceries" {
		t.Fatalf("rows = %v, want [tx-1/Groceries]", ledger.rows)
	}
	if len(store.synced) != 1 || store.synced[0] != "tx-1" {
		t.Fatalf("synced = %v, want [tx-1]", store.synced)
	}
}

func TestHandleSyncMessageUnknownCategory(t *testing.T) {
	store := syncStoreWithTx()
	store.categories = nil
	ledger := &fakeLedger{}
	w := NewSyncWorker(store, ledger, 10, testLogger())

	if err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("tx-1")); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if ledger.rows[0] != "tx-1/Unknown Category" {
		t.Fatalf("row = %v, want Unknown Category fallback", ledger.rows[0])
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	store := syncStoreWithTx()
	w := NewSyncWorker(store, &fakeLedger{}, 10, testLogger())

	err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("ghost"))
	if err == nil {
		t.Fatalf("expected error for missing transaction")
	}
	if len(store.errored) != 1 || store.errored[0] != "ghost" {
		t.Fatalf("errored = %v, want [ghost]", store.errored)
	}
}

func TestHandleSyncMessageLedgerFailure(t *testing.T) {
	store := syncStoreWithTx()
	ledger := &fakeLedger{fail: errors.New("quota exceeded")}
	w := NewSyncWorker(store, ledger, 10, testLogger())

	if err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage("tx-1")); err == nil {
		t.Fatalf("expected error when the ledger append fails")
	}
	if len(store.errored) != 1 {
		t.Fatalf("transaction should be marked sync_error")
	}
	if len(store.synced) != 0 {
		t.Fatalf("transaction must not be marked synced")
	}
}

func TestProcessPending(t *testing.T) {
	store := syncStoreWithTx()
	store.pending = []storage.PendingSyncTransaction{{ID: "tx-1"}}
	ledger := &fakeLedger{}
	w := NewSyncWorker(store, ledger, 10, testLogger())

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(ledger.rows))
	}
}

func TestProcessPendingEmpty(t *testing.T) {
	store := syncStoreWithTx()
	ledger := &fakeLedger{}
	w := NewSyncWorker(store, ledger, 10, testLogger())

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending with nothing pending: %v", err)
	}
	if len(ledger.rows) != 0 {
		t.Fatalf("no rows expected")
	}
}
