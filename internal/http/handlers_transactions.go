package http

import (
	"net/http"
	"strings"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

// handleCreateTransaction records a ledger entry and queues it for export.
// Amounts are entered unsigned; the kind field decides the sign, expenses
// becoming negative cents.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	date := core.Date{}
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			UnprocessableEntityError("Invalid date").Write(w)
			return
		}
		date = parsed
	} else {
		now := time.Now()
		date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	amount, err := core.ParseAmount(r.Form.Get("amount"))
	if err != nil {
		UnprocessableEntityError("Invalid amount").Write(w)
		return
	}
	if r.Form.Get("kind") != "income" {
		amount = core.Money{Cents: -amount.Abs().Cents}
	}

	transaction := core.Transaction{
		CategoryID:  sanitizeInput(r.Form.Get("category_id")),
		Date:        date,
		Payee:       sanitizeInput(r.Form.Get("payee")),
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      amount,
	}
	if err := transaction.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), transaction)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to save transaction",
			log.FieldError, err,
			"payee", transaction.Payee,
			log.FieldAmountCents, transaction.Amount.Cents)
		InternalServerError("Error saving transaction").Write(w)
		return
	}

	s.invalidateReconciliations()

	s.logger.InfoContext(r.Context(), "transaction created",
		log.FieldTxID, created.ID,
		"payee", created.Payee,
		log.FieldAmountCents, created.Amount.Cents)

	NewHTMXResponse().
		TriggerTransactionCreated(created.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Transaction recorded").
		Write(w)
}

// handleDeleteTransaction removes a ledger entry by id.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := parser.Get("id")
	if id == "" {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to delete transaction",
			log.FieldError, err,
			log.FieldTxID, id)
		InternalServerError("Error deleting transaction").Write(w)
		return
	}

	s.invalidateReconciliations()

	NewHTMXResponse().
		TriggerTransactionDeleted(id).
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}
