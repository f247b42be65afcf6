package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is a CSV row after column coercion but before business
// rule validation. The reader guarantees the types, nothing more.
type RawTransaction struct {
	TransactionID   string
	ProductID       int64
	CustomerID      string
	Quantity        int64
	UnitPrice       decimal.Decimal
	TotalAmount     decimal.Decimal
	TransactionDate time.Time
	StoreLocation   string
	PaymentMethod   string
}

// Transaction is a validated sales transaction. Quantity is positive,
// amounts are non-negative and PaymentMethod is normalized to lowercase.
type Transaction struct {
	TransactionID   string
	ProductID       int64
	CustomerID      string
	Quantity        int64
	UnitPrice       decimal.Decimal
	TotalAmount     decimal.Decimal
	TransactionDate time.Time
	StoreLocation   string
	PaymentMethod   string
}

// FactRow matches the fact_sales column order. DateKey carries only the
// calendar date component of TransactionTimestamp.
type FactRow struct {
	TransactionID        string
	ProductID            int64
	CustomerID           string
	TransactionTimestamp time.Time
	DateKey              time.Time
	Quantity             int64
	UnitPrice            decimal.Decimal
	TotalAmount          decimal.Decimal
	StoreLocation        string
	PaymentMethod        string
	LoadedAt             time.Time
}

// Args returns the row as positional statement arguments.
func (r FactRow) Args() []any {
	return []any{
		r.TransactionID,
		r.ProductID,
		r.CustomerID,
		r.TransactionTimestamp,
		r.DateKey,
		r.Quantity,
		r.UnitPrice.String(),
		r.TotalAmount.String(),
		r.StoreLocation,
		r.PaymentMethod,
		r.LoadedAt,
	}
}
