// Package services orchestrates the repositories, the message queue and
// the market-data client behind the HTTP handlers and workers.
package services

import (
	"context"
	"fmt"
	"io"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

// TransactionStore is the slice of the repository the ledger service needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// SyncPublisher enqueues ledger export requests.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, transactionID string) error
}

// LedgerService records transactions locally and queues them for export.
// The queue is best effort: a publish failure never loses the local write,
// the periodic catch-up in the sync worker picks the row up later.
type LedgerService struct {
	store     TransactionStore
	publisher SyncPublisher
	logger    *log.Logger
}

func NewLedgerService(store TransactionStore, publisher SyncPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "sync publisher not available, relying on catch-up",
			log.FieldTxID, created.ID)
		return created, nil
	}
	if err := s.publisher.PublishTransactionSync(ctx, created.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldTxID, created.ID,
			log.FieldError, err)
	}
	return created, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "transaction deleted", log.FieldTxID, id)
	return nil
}

// Close releases the store and publisher when they are closable.
func (s *LedgerService) Close() error {
	var errs []error
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
