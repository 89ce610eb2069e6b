package repository

import "time"

// Kind names one of the three mutable entity tables.
type Kind string

const (
	KindIncome   Kind = "income"
	KindBudget   Kind = "budget"
	KindCategory Kind = "category"
)

// Table returns the backing table name.
func (k Kind) Table() string {
	switch k {
	case KindIncome:
		return "incomes"
	case KindBudget:
		return "budgets"
	case KindCategory:
		return "spending_types"
	}
	return ""
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k.Table() != "" }

// Columns lists the transaction FK columns an entity of this kind can occupy.
func (k Kind) Columns() []string {
	switch k {
	case KindIncome:
		return []string{"source_income_id"}
	case KindBudget:
		return []string{"source_budget_id", "destination_budget_id"}
	case KindCategory:
		return []string{"destination_spending_type_id"}
	}
	return nil
}

// Default display attributes per kind.
func (k Kind) DefaultIcon() string {
	switch k {
	case KindIncome:
		return "wallet"
	case KindBudget:
		return "piggy-bank"
	default:
		return "receipt"
	}
}

func (k Kind) DefaultColor() string {
	switch k {
	case KindIncome:
		return "#10b981"
	case KindBudget:
		return "#3b82f6"
	default:
		return "#ef4444"
	}
}

// Entity holds the columns shared by incomes, budgets and spending categories.
type Entity struct {
	ID        int64
	Kind      Kind
	Name      string
	Currency  string
	Icon      string
	Color     string
	IsActive  bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Income is an income source row.
type Income struct {
	Entity
	ExpectedAmount int64
}

// Budget is a budget row.
type Budget struct {
	Entity
	InitialBalance int64
}

// BudgetBalance is a budget with its derived current balance.
type BudgetBalance struct {
	Budget
	Balance int64
}

// Category is a spending category row.
type Category struct {
	Entity
}

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#8b5cf6"

// MergeTagColor marks audit tags created by merges.
const MergeTagColor = "#9ca3af"

// Tag represents a tag row.
type Tag struct {
	ID        int64
	Name      string
	Color     string
	CreatedAt time.Time
}

// TransactionType is one of earning, spending, transfer.
type TransactionType string

const (
	Earning  TransactionType = "earning"
	Spending TransactionType = "spending"
	Transfer TransactionType = "transfer"
)

// Transaction represents a transaction row.
type Transaction struct {
	ID                        int64
	Type                      TransactionType
	SourceIncomeID            *int64
	SourceBudgetID            *int64
	DestinationBudgetID       *int64
	DestinationSpendingTypeID *int64
	Amount                    int64
	SourceCurrency            string
	ConvertedAmount           *int64
	DestinationCurrency       *string
	ExchangeRate              *float64
	Date                      string
	Comment                   string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// SourceID returns whichever source FK is set.
func (t Transaction) SourceID() int64 {
	if t.SourceIncomeID != nil {
		return *t.SourceIncomeID
	}
	if t.SourceBudgetID != nil {
		return *t.SourceBudgetID
	}
	return 0
}

// DestinationID returns whichever destination FK is set.
func (t Transaction) DestinationID() int64 {
	if t.DestinationBudgetID != nil {
		return *t.DestinationBudgetID
	}
	if t.DestinationSpendingTypeID != nil {
		return *t.DestinationSpendingTypeID
	}
	return 0
}

// TransactionDetail is a transaction with resolved endpoint names and tags.
type TransactionDetail struct {
	Transaction
	SourceName      string
	DestinationName string
	Tags            []Tag
}

// ExchangeRate represents a cached rate row.
type ExchangeRate struct {
	Base   string
	Target string
	Rate   float64
	Date   string
}

// CurrencyInfo is one row of the currency catalog.
type CurrencyInfo struct {
	Code      string
	Name      string
	FetchedAt time.Time
}
