package core

import "testing"

func TestOverview(t *testing.T) {
	accounts := []Account{
		{ID: "a1", Name: "Checking", Type: AccountCash, Balance: Money{Cents: 60000}, Active: true},
		{ID: "a2", Name: "Broker", Type: AccountInvestment, Balance: Money{Cents: 140000}, Active: true},
		{ID: "a3", Name: "Old Wallet", Type: AccountCash, Balance: Money{Cents: 99999}, Active: false},
		{ID: "a4", Name: "Margin Debt", Type: AccountInvestment, Balance: Money{Cents: -10000}, Active: true},
	}
	ov := Overview(accounts)

	if ov.NetWorth.Cents != 190000 {
		t.Fatalf("net worth = %d, want 190000", ov.NetWorth.Cents)
	}
	if ov.Invested.Cents != 130000 {
		t.Fatalf("invested = %d, want 130000", ov.Invested.Cents)
	}
	if ov.Cash.Cents != 60000 {
		t.Fatalf("cash = %d, want 60000", ov.Cash.Cents)
	}
	wantInvested := 130000.0 / 190000.0 * 100
	if diff := ov.InvestedPct - wantInvested; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("invested pct = %v, want %v", ov.InvestedPct, wantInvested)
	}
	// Distribution excludes the inactive account and the negative balance.
	if len(ov.Distribution) != 2 {
		t.Fatalf("distribution slices = %d, want 2", len(ov.Distribution))
	}
	for _, s := range ov.Distribution {
		if s.Color == "" {
			t.Fatalf("slice %s has no color", s.Name)
		}
	}
}

func TestOverviewEmptyAndNegative(t *testing.T) {
	ov := Overview(nil)
	if ov.InvestedPct != 0 || ov.LiquidityPct != 0 {
		t.Fatalf("percentages should be 0 for empty accounts")
	}

	ov = Overview([]Account{
		{ID: "a1", Name: "Debt", Type: AccountCash, Balance: Money{Cents: -5000}, Active: true},
	})
	if ov.NetWorth.Cents != -5000 {
		t.Fatalf("net worth = %d, want -5000", ov.NetWorth.Cents)
	}
	if ov.InvestedPct != 0 || ov.LiquidityPct != 0 {
		t.Fatalf("percentages should be 0 for non-positive net worth")
	}
	if len(ov.Distribution) != 0 {
		t.Fatalf("distribution should be empty")
	}
}

func TestUpcomingEvents(t *testing.T) {
	now := NewDate(2024, 3, 25)
	budgets := []Budget{
		{ID: "b1", Name: "March", Start: NewDate(2024, 3, 1), End: NewDate(2024, 3, 31)},
		{ID: "b2", Name: "April", Start: NewDate(2024, 4, 1), End: NewDate(2024, 4, 30)},
		{ID: "b3", Name: "June", Start: NewDate(2024, 6, 1), End: NewDate(2024, 6, 30)},
	}
	events := UpcomingEvents(budgets, now, 14)

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].BudgetID != "b1" || events[0].Kind != "ends" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].BudgetID != "b2" || events[1].Kind != "starts" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestAccountColorStable(t *testing.T) {
	if AccountColor("Checking") != AccountColor("Checking") {
		t.Fatalf("color should be deterministic")
	}
}
