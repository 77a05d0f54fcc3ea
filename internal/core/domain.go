package core

import (
	"errors"
	"strings"
	"time"
)

const (
	AccountCash       AccountType = "CASH"
	AccountInvestment AccountType = "INVESTMENT"
	AccountCrypto     AccountType = "CRYPTO"
	AccountSavings    AccountType = "SAVINGS"
	AccountRetirement AccountType = "RETIREMENT"
	AccountRealEstate AccountType = "REAL_ESTATE"
	AccountBusiness   AccountType = "BUSINESS"
	AccountEducation  AccountType = "EDUCATION"
	AccountTravel     AccountType = "TRAVEL"
	AccountOther      AccountType = "OTHER"
)

type (
	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID          string
		Name        string
		Description string
	}

	BudgetItem struct {
		ID         string
		CategoryID string
		Allocated  Money
		// Actual is a cached snapshot of spend; Reconcile recomputes the
		// authoritative value from transactions on every call.
		Actual Money
	}

	Budget struct {
		ID    string
		Name  string
		Start Date
		End   Date
		Items []BudgetItem
	}

	Transaction struct {
		ID          string
		CategoryID  string
		Date        Date
		Payee       string
		Description string
		Amount      Money // negative cents = expense, non-negative = income/refund
	}

	Account struct {
		ID          string
		Name        string
		Balance     Money
		Type        AccountType
		Color       string
		Active      bool
		LastUpdated time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyPayee       = errors.New("empty payee")
	ErrEmptyCategory    = errors.New("empty category reference")
	ErrInvalidDateRange = errors.New("end date before start date")
	ErrDuplicateItem    = errors.New("duplicate category in budget items")
	ErrUnknownType      = errors.New("unknown account type")
)

// NewDate creates a Date at day precision (midnight UTC).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Within reports whether d falls inside [start, end], inclusive on both ends.
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

// AccountTypes lists every supported account type in display order.
func AccountTypes() []AccountType {
	return []AccountType{
		AccountCash, AccountInvestment, AccountCrypto, AccountSavings,
		AccountRetirement, AccountRealEstate, AccountBusiness,
		AccountEducation, AccountTravel, AccountOther,
	}
}

// Description returns the user-facing description for an account type.
func (t AccountType) Description() string {
	switch t {
	case AccountCash:
		return "Physical cash or highly liquid funds"
	case AccountInvestment:
		return "Stocks, bonds, mutual funds"
	case AccountCrypto:
		return "Cryptocurrencies"
	case AccountSavings:
		return "Savings accounts"
	case AccountRetirement:
		return "Retirement funds"
	case AccountRealEstate:
		return "Real estate properties"
	case AccountBusiness:
		return "Business accounts or assets"
	case AccountEducation:
		return "Education savings funds"
	case AccountTravel:
		return "Funds allocated for travel"
	default:
		return "Any other type of account"
	}
}

// Invested reports whether balances of this type count as invested capital
// rather than liquidity on the dashboard.
func (t AccountType) Invested() bool {
	switch t {
	case AccountInvestment, AccountCrypto, AccountRetirement, AccountRealEstate, AccountBusiness:
		return true
	}
	return false
}

// NormalizeAccountType maps arbitrary input to a known type, defaulting to OTHER.
func NormalizeAccountType(s string) AccountType {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AccountTypes() {
		if t == known {
			return t
		}
	}
	return AccountOther
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if len(c.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (i BudgetItem) Validate() error {
	if strings.TrimSpace(i.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if i.Allocated.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if err := b.Start.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := b.End.Validate(); err != nil {
		return errors.New("invalid end date: " + err.Error())
	}
	if b.End.Before(b.Start.Time) {
		return ErrInvalidDateRange
	}
	seen := make(map[string]struct{}, len(b.Items))
	for _, item := range b.Items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.CategoryID]; dup {
			return ErrDuplicateItem
		}
		seen[item.CategoryID] = struct{}{}
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Payee) == "" {
		return ErrEmptyPayee
	}
	if len(t.Payee) > 100 {
		return errors.New("payee too long (max 100 characters)")
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	for _, t := range AccountTypes() {
		if a.Type == t {
			return nil
		}
	}
	return ErrUnknownType
}
