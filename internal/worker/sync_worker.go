// Package worker holds the background processes: ledger export of
// transactions to Google Sheets and periodic quote refresh.
package worker

import (
	"context"
	"fmt"

	"patrimonio/internal/amqp"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/sheets"
	"patrimonio/internal/storage"
)

// SyncStore is the repository surface the sync worker reads and marks.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetPendingSyncTransactions(ctx context.Context, limit int) ([]storage.PendingSyncTransaction, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker exports transactions to the external ledger. It is driven
// by AMQP messages, with a periodic catch-up pass for anything missed.
type SyncWorker struct {
	store     SyncStore
	ledger    sheets.LedgerAppender
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store SyncStore, ledger sheets.LedgerAppender, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		store:     store,
		ledger:    ledger,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage exports the transaction named by one queue message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "processing sync message", log.FieldTxID, msg.TransactionID)
	return w.export(ctx, msg.TransactionID)
}

// ProcessPending exports transactions still marked pending. This is the
// catch-up path for lost messages or worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger catch-up pass once at worker start.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize*5)
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) error {
	pending, err := w.store.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending transactions", "count", len(pending))

	for _, p := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.export(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "failed to export transaction",
				log.FieldTxID, p.ID,
				log.FieldError, err)
		}
	}
	return nil
}

func (w *SyncWorker) export(ctx context.Context, id string) error {
	t, err := w.store.GetTransaction(ctx, id)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldTxID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("get transaction %s: %w", id, err)
	}

	ref, err := w.ledger.Append(ctx, t, w.categoryName(ctx, t.CategoryID))
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldTxID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		// The export itself succeeded, only the bookkeeping failed.
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldTxID, id,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "transaction exported",
		log.FieldTxID, id,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, t.Amount.Cents)
	return nil
}

func (w *SyncWorker) categoryName(ctx context.Context, categoryID string) string {
	categories, err := w.store.ListCategories(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to resolve category name",
			log.FieldCategoryID, categoryID,
			log.FieldError, err)
		return "Unknown Category"
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return c.Name
		}
	}
	return "Unknown Category"
}
