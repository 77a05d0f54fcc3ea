package core

// Reconciliation matches transactions to a budget window and recomputes
// actual spend per category. Inputs are never mutated; every call is a
// full recomputation from the transaction set, so cached BudgetItem.Actual
// values can never drift from the ledger.

const unknownCategoryLabel = "Unknown Category"

type (
	// ItemProgress is the budget-vs-actual line for one budget item.
	ItemProgress struct {
		ItemID       string
		CategoryID   string
		CategoryName string
		Allocated    Money
		Spent        Money
		// Percentage is spent/allocated*100, or 0 when nothing is allocated.
		Percentage float64
		// Unallocated flags spend recorded against a zero-allocation item,
		// which the percentage alone cannot express.
		Unallocated bool
	}

	// CategorySpend is one slice of the spending-by-category chart.
	CategorySpend struct {
		CategoryID string
		Name       string
		Value      Money
	}

	ReconciliationResult struct {
		BudgetID       string
		TotalAllocated Money
		TotalSpent     Money
		Items          []ItemProgress
		ByCategory     []CategorySpend
	}
)

// Reconcile aggregates spend for every transaction inside the budget's
// date window (inclusive on both ends) and maps it onto the budget's items
// and a chart-ready category series.
//
// Only negative amounts count as spend; income and refunds are excluded
// rather than netted. Transactions referencing a category absent from
// cats degrade to a placeholder label instead of failing.
func Reconcile(budget Budget, transactions []Transaction, categories []Category) ReconciliationResult {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	spent := make(map[string]int64)
	order := make([]string, 0)
	for _, t := range transactions {
		if !t.Date.Within(budget.Start, budget.End) {
			continue
		}
		if !t.Amount.Negative() {
			continue
		}
		if _, seen := spent[t.CategoryID]; !seen {
			order = append(order, t.CategoryID)
		}
		spent[t.CategoryID] += t.Amount.Abs().Cents
	}

	result := ReconciliationResult{BudgetID: budget.ID}
	for _, item := range budget.Items {
		cents := spent[item.CategoryID]
		progress := ItemProgress{
			ItemID:       item.ID,
			CategoryID:   item.CategoryID,
			CategoryName: categoryName(names, item.CategoryID),
			Allocated:    item.Allocated,
			Spent:        Money{Cents: cents},
		}
		if item.Allocated.Cents > 0 {
			progress.Percentage = float64(cents) / float64(item.Allocated.Cents) * 100
		} else if cents > 0 {
			progress.Unallocated = true
		}
		result.TotalAllocated.Cents += item.Allocated.Cents
		result.TotalSpent.Cents += cents
		result.Items = append(result.Items, progress)
	}

	for _, id := range order {
		cents := spent[id]
		if cents == 0 {
			continue
		}
		result.ByCategory = append(result.ByCategory, CategorySpend{
			CategoryID: id,
			Name:       categoryName(names, id),
			Value:      Money{Cents: cents},
		})
	}

	return result
}

func categoryName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return unknownCategoryLabel
}
