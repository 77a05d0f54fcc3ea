package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

// handleBudgetsPage renders the budgets management page.
func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list categories error", log.FieldError, err)
	}

	type categoryView struct {
		ID, Name string
	}
	data := struct {
		Categories []categoryView
	}{}
	for _, c := range categories {
		data.Categories = append(data.Categories, categoryView{ID: c.ID, Name: c.Name})
	}
	s.render(w, r, "budgets.html", data)
}

// handleBudgetsList renders the budget list partial.
func (s *Server) handleBudgetsList(w http.ResponseWriter, r *http.Request) {
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
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading budgets</div>`))
		return
	}
	names := s.categoryNames(ctx)

	type itemView struct {
		ID        string
		Category  string
		Allocated string
	}
	type budgetView struct {
		ID        string
		Name      string
		Start     string
		End       string
		Allocated string
		Items     []itemView
	}
	data := struct {
		Budgets []budgetView
	}{}
	for _, b := range budgets {
		view := budgetView{
			ID:    b.ID,
			Name:  b.Name,
			Start: b.Start.String(),
			End:   b.End.String(),
		}
		var total int64
		for _, item := range b.Items {
			total += item.Allocated.Cents
			category := names[item.CategoryID]
			if category == "" {
				category = "Unknown Category"
			}
			view.Items = append(view.Items, itemView{
				ID:        item.ID,
				Category:  category,
				Allocated: formatEuros(item.Allocated.Cents),
			})
		}
		view.Allocated = formatEuros(total)
		data.Budgets = append(data.Budgets, view)
	}

	if err := s.templates.ExecuteTemplate(w, "budgets_list.html", data); err != nil {
		s.logger.ErrorContext(ctx, "budgets list template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering budgets</div>`))
	}
}

// handleSaveBudget creates a budget with its category allocations. The
// form posts parallel category_id/allocated slices, one pair per item;
// blank allocations are kept as zero so overspend still surfaces.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	start, err := core.ParseDate(r.Form.Get("start"))
	if err != nil {
		UnprocessableEntityError("Invalid start date").Write(w)
		return
	}
	end, err := core.ParseDate(r.Form.Get("end"))
	if err != nil {
		UnprocessableEntityError("Invalid end date").Write(w)
		return
	}

	budget := core.Budget{Name: name, Start: start, End: end}
	categoryIDs := r.Form["category_id"]
	allocations := r.Form["allocated"]
	for i, categoryID := range categoryIDs {
		categoryID = sanitizeInput(categoryID)
		if categoryID == "" {
			continue
		}
		allocated := core.Money{}
		if i < len(allocations) && strings.TrimSpace(allocations[i]) != "" {
			allocated, err = core.ParseAllocation(allocations[i])
			if err != nil {
				UnprocessableEntityError("Invalid allocation").Write(w)
				return
			}
		}
		budget.Items = append(budget.Items, core.BudgetItem{
			CategoryID: categoryID,
			Allocated:  allocated,
		})
	}

	if err := budget.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateBudget(r.Context(), budget)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to create budget",
			log.FieldError, err,
			"budget_name", budget.Name)
		InternalServerError("Error saving budget").Write(w)
		return
	}

	s.logger.InfoContext(r.Context(), "budget created",
		log.FieldBudgetID, created.ID,
		"budget_name", created.Name,
		"items", len(created.Items))

	NewHTMXResponse().
		TriggerBudgetSaved(created.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Budget saved").
		Write(w)
}

// handleDeleteBudget removes a budget and its items.
func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing budget id").Write(w)
		return
	}

	if err := s.store.DeleteBudget(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Budget not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to delete budget",
			log.FieldError, err,
			log.FieldBudgetID, id)
		InternalServerError("Error deleting budget").Write(w)
		return
	}

	s.reconCache.Delete(id)

	s.logger.InfoContext(r.Context(), "budget deleted", log.FieldBudgetID, id)

	NewHTMXResponse().
		TriggerBudgetDeleted(id).
		TriggerSuccessNotification("Budget deleted").
		Write(w)
}

// handleSaveBudgetItem updates the allocation of a single budget item.
func (s *Server) handleSaveBudgetItem(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	itemID := sanitizeInput(r.Form.Get("item_id"))
	if itemID == "" {
		BadRequestError("Missing item id").Write(w)
		return
	}
	allocated, err := core.ParseAllocation(r.Form.Get("allocated"))
	if err != nil {
		UnprocessableEntityError("Invalid allocation").Write(w)
		return
	}

	if err := s.store.UpdateBudgetItem(r.Context(), itemID, allocated); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Budget item not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to update budget item",
			log.FieldError, err,
			"item_id", itemID)
		InternalServerError("Error saving allocation").Write(w)
		return
	}

	// The item's budget is unknown here, so drop every cached result.
	s.invalidateReconciliations()

	NewHTMXResponse().
		TriggerSuccessNotification("Allocation updated").
		Write(w)
}

// handleReconciliation renders budget-vs-actual progress for one budget.
func (s *Server) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		_, _ = w.Write([]byte(`<div class="placeholder">Missing budget id</div>`))
		return
	}

	result, err := s.getReconciliation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_, _ = w.Write([]byte(`<div class="placeholder">Budget not found</div>`))
			return
		}
		s.logger.ErrorContext(r.Context(), "reconciliation error",
			log.FieldError, err,
			log.FieldBudgetID, id)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading reconciliation</div>`))
		return
	}

	var maxChart int64
	for _, c := range result.ByCategory {
		if c.Value.Cents > maxChart {
			maxChart = c.Value.Cents
		}
	}

	type itemView struct {
		Category    string
		Allocated   string
		Spent       string
		Percentage  string
		Width       int
		Over        bool
		Unallocated bool
	}
	type chartView struct {
		Name, Amount string
		Width        int
	}
	data := struct {
		BudgetID       string
		TotalAllocated string
		TotalSpent     string
		Items          []itemView
		Chart          []chartView
	}{
		BudgetID:       result.BudgetID,
		TotalAllocated: formatEuros(result.TotalAllocated.Cents),
		TotalSpent:     formatEuros(result.TotalSpent.Cents),
	}
	for _, item := range result.Items {
		width := int(item.Percentage)
		if width > 100 {
			width = 100
		}
		data.Items = append(data.Items, itemView{
			Category:    item.CategoryName,
			Allocated:   formatEuros(item.Allocated.Cents),
			Spent:       formatEuros(item.Spent.Cents),
			Percentage:  formatPercent(item.Percentage),
			Width:       width,
			Over:        item.Percentage > 100,
			Unallocated: item.Unallocated,
		})
	}
	for _, c := range result.ByCategory {
		width := 0
		if maxChart > 0 {
			width = int((c.Value.Cents*100 + maxChart/2) / maxChart)
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Chart = append(data.Chart, chartView{
			Name:   c.Name,
			Amount: formatEuros(c.Value.Cents),
			Width:  width,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "reconciliation.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "reconciliation template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering reconciliation</div>`))
	}
}

func (s *Server) getReconciliation(ctx context.Context, budgetID string) (core.ReconciliationResult, error) {
	if result, found := s.reconCache.Get(budgetID); found {
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()

	budget, err := s.store.GetBudget(cctx, budgetID)
	if err != nil {
		return core.ReconciliationResult{}, err
	}
	transactions, err := s.store.ListTransactions(cctx, budget.Start, budget.End)
	if err != nil {
		return core.ReconciliationResult{}, err
	}
	categories, err := s.store.ListCategories(cctx)
	if err != nil {
		return core.ReconciliationResult{}, err
	}

	result := core.Reconcile(budget, transactions, categories)
	s.reconCache.Set(budgetID, result)
	return result, nil
}

// handleSaveCategory creates a spending category.
func (s *Server) handleSaveCategory(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	category := core.Category{
		Name:        sanitizeInput(r.Form.Get("name")),
		Description: sanitizeInput(r.Form.Get("description")),
	}
	if err := category.Validate(); err != nil {
		UnprocessableEntityError("Invalid data: " + err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), category)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to create category",
			log.FieldError, err,
			"category_name", category.Name)
		InternalServerError("Error saving category").Write(w)
		return
	}

	// Cached reconciliations carry resolved category names.
	s.invalidateReconciliations()

	NewHTMXResponse().
		Trigger("category:saved", map[string]string{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification("Category saved").
		Write(w)
}

// handleDeleteCategory removes a category by id.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing category id").Write(w)
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Category not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to delete category",
			log.FieldError, err,
			log.FieldCategoryID, id)
		InternalServerError("Error deleting category").Write(w)
		return
	}

	s.invalidateReconciliations()

	NewHTMXResponse().
		Trigger("category:deleted", map[string]string{"id": id}).
		TriggerSuccessNotification("Category deleted").
		Write(w)
}
