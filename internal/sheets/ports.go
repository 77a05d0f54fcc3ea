// Package sheets defines the outbound port for the ledger export.
package sheets

import (
	"context"

	"patrimonio/internal/core"
)

// LedgerAppender appends one transaction row to the external ledger and
// returns a reference to the written row.
type LedgerAppender interface {
	Append(ctx context.Context, t core.Transaction, categoryName string) (rowRef string, err error)
}
