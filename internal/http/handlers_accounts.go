package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

// handleAccountsPage renders the accounts management page.
func (s *Server) handleAccountsPage(w http.ResponseWriter, r *http.Request) {
	type typeView struct {
		Value       string
		Description string
	}
	data := struct {
		Types []typeView
	}{}
	for _, t := range core.AccountTypes() {
		data.Types = append(data.Types, typeView{Value: string(t), Description: t.Description()})
	}
	s.render(w, r, "accounts.html", data)
}

// handleAccountsList renders the account list partial.
func (s *Server) handleAccountsList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list accounts error", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading accounts</div>`))
		return
	}

	type accountView struct {
		ID          string
		Name        string
		Balance     string
		Type        string
		Color       string
		Active      bool
		LastUpdated string
	}
	data := struct {
		Accounts []accountView
	}{}
	for _, a := range accounts {
		data.Accounts = append(data.Accounts, accountView{
			ID:          a.ID,
			Name:        a.Name,
			Balance:     formatEuros(a.Balance.Cents),
			Type:        string(a.Type),
			Color:       a.Color,
			Active:      a.Active,
			LastUpdated: a.LastUpdated.Format("2006-01-02"),
		})
	}

	if err := s.templates.ExecuteTemplate(w, "accounts_list.html", data); err != nil {
		s.logger.ErrorContext(ctx, "accounts list template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering accounts</div>`))
	}
}

// handleSaveAccount creates an account, or updates it when an id is posted.
func (s *Server) handleSaveAccount(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sanitizeInput(r.Form.Get("id"))
	name := sanitizeInput(r.Form.Get("name"))
	balance, err := core.ParseAmount(r.Form.Get("balance"))
	if err != nil {
		UnprocessableEntityError("Invalid balance").Write(w)
		return
	}

	account := core.Account{
		ID:          id,
		Name:        name,
		Balance:     balance,
		Type:        core.NormalizeAccountType(r.Form.Get("type")),
		Color:       sanitizeInput(r.Form.Get("color")),
		Active:      r.Form.Get("active") != "false",
		LastUpdated: time.Now().UTC(),
	}
	if err := account.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	if id == "" {
		created, err := s.store.CreateAccount(r.Context(), account)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "failed to create account",
				log.FieldError, err,
				"account_name", account.Name)
			InternalServerError("Error saving account").Write(w)
			return
		}
		account = created
	} else {
		if err := s.store.UpdateAccount(r.Context(), account); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				NotFoundError("Account not found").Write(w)
				return
			}
			s.logger.ErrorContext(r.Context(), "failed to update account",
				log.FieldError, err,
				log.FieldAccountID, id)
			InternalServerError("Error saving account").Write(w)
			return
		}
	}

	s.invalidateOverview()

	s.logger.InfoContext(r.Context(), "account saved",
		log.FieldAccountID, account.ID,
		"account_name", account.Name,
		log.FieldAmountCents, account.Balance.Cents)

	NewHTMXResponse().
		TriggerAccountSaved(account.ID).
		TriggerOverviewRefresh().
		TriggerFormReset().
		TriggerSuccessNotification("Account saved").
		Write(w)
}

// handleDeleteAccount removes an account by id.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing account id").Write(w)
		return
	}

	if err := s.store.DeleteAccount(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Account not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to delete account",
			log.FieldError, err,
			log.FieldAccountID, id)
		InternalServerError("Error deleting account").Write(w)
		return
	}

	s.invalidateOverview()

	s.logger.InfoContext(r.Context(), "account deleted", log.FieldAccountID, id)

	NewHTMXResponse().
		TriggerAccountDeleted(id).
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Account deleted").
		Write(w)
}
