package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawProduct is the untyped field bag returned by the product API. Numeric
// fields are kept as json.Number so the validator owns the coercion.
type RawProduct struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Price       json.Number `json:"price"`
	Category    string      `json:"category"`
	Description *string     `json:"description"`
	Image       *string     `json:"image"`
}

// Product is a validated product record. Price is guaranteed positive and
// Title is non-blank and trimmed.
type Product struct {
	ProductID   int64
	Title       string
	Price       decimal.Decimal
	Category    string
	Description string
	ImageURL    *string
}

// ProductRow matches the dim_product column order.
type ProductRow struct {
	ProductID   int64
	ProductName string
	Category    string
	Description string
	UnitPrice   decimal.Decimal
	ImageURL    *string
	LoadedAt    time.Time
}

// Args returns the row as positional statement arguments.
func (r ProductRow) Args() []any {
	return []any{r.ProductID, r.ProductName, r.Category, r.Description, r.UnitPrice.String(), r.ImageURL, r.LoadedAt}
}
