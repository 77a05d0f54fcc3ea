package core

import (
	"fmt"
	"hash/fnv"
)

type (
	// AccountSlice is one slice of the account-distribution chart.
	AccountSlice struct {
		Name  string
		Value Money
		Color string
	}

	// DashboardOverview aggregates account balances for the landing page.
	DashboardOverview struct {
		NetWorth     Money
		Invested     Money
		Cash         Money
		InvestedPct  float64
		LiquidityPct float64
		Distribution []AccountSlice
	}

	// BudgetEvent is an upcoming budget-period boundary shown on the dashboard.
	BudgetEvent struct {
		BudgetID string
		Name     string
		Date     Date
		Kind     string // "starts" or "ends"
	}
)

// Overview folds account balances into the dashboard aggregates. Inactive
// accounts are skipped entirely; non-positive balances are excluded from the
// distribution chart but still count toward totals. Percentages are 0 when
// net worth is not positive.
func Overview(accounts []Account) DashboardOverview {
	var ov DashboardOverview
	for _, a := range accounts {
		if !a.Active {
			continue
		}
		ov.NetWorth.Cents += a.Balance.Cents
		if a.Type.Invested() {
			ov.Invested.Cents += a.Balance.Cents
		} else {
			ov.Cash.Cents += a.Balance.Cents
		}
		if a.Balance.Cents > 0 {
			color := a.Color
			if color == "" {
				color = AccountColor(a.Name)
			}
			ov.Distribution = append(ov.Distribution, AccountSlice{
				Name:  a.Name,
				Value: a.Balance,
				Color: color,
			})
		}
	}
	if ov.NetWorth.Cents > 0 {
		ov.InvestedPct = float64(ov.Invested.Cents) / float64(ov.NetWorth.Cents) * 100
		ov.LiquidityPct = float64(ov.Cash.Cents) / float64(ov.NetWorth.Cents) * 100
	}
	return ov
}

// UpcomingEvents returns budget periods starting or ending within the next
// horizonDays from now, ordered by the order of the input budgets.
func UpcomingEvents(budgets []Budget, now Date, horizonDays int) []BudgetEvent {
	limit := Date{Time: now.AddDate(0, 0, horizonDays)}
	var events []BudgetEvent
	for _, b := range budgets {
		if b.Start.Within(now, limit) {
			events = append(events, BudgetEvent{BudgetID: b.ID, Name: b.Name, Date: b.Start, Kind: "starts"})
		}
		if b.End.Within(now, limit) {
			events = append(events, BudgetEvent{BudgetID: b.ID, Name: b.Name, Date: b.End, Kind: "ends"})
		}
	}
	return events
}

// AccountColor derives a stable HSL color from the account name so charts
// keep consistent colors across reloads without persisting a palette.
func AccountColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	hue := h.Sum32() % 360
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue)
}
