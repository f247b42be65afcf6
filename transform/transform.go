// Package transform shapes validated records into warehouse rows and
// computes run-level aggregates. Apart from the injected clock every
// function is deterministic with respect to its input ordering.
package transform

import (
	"time"

	"github.com/shopspring/decimal"

	"retailflow/logger"
	"retailflow/models"
)

// CustomerCountry is the sentinel stored until a real customer source
// provides one.
const CustomerCountry = "Unknown"

type Transformer struct {
	clock Clock
	log   *logger.Log
}

// NewTransformer creates a Transformer. A nil clock falls back to the
// system clock.
func NewTransformer(clock Clock) *Transformer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Transformer{
		clock: clock,
		log:   logger.GetLogger(),
	}
}

// ProductRows shapes validated products for dim_product. A row missing its
// key or name is dropped with a warning rather than aborting the batch.
func (t *Transformer) ProductRows(products []models.Product) []models.ProductRow {
	log := t.log.WithComponent("transformer")
	loadedAt := t.clock.Now()

	rows := make([]models.ProductRow, 0, len(products))
	for _, p := range products {
		if p.ProductID == 0 || p.Title == "" {
			log.WithFields(logger.Fields{"product_id": p.ProductID}).Warn("dropping product row with missing fields")
			continue
		}
		rows = append(rows, models.ProductRow{
			ProductID:   p.ProductID,
			ProductName: p.Title,
			Category:    p.Category,
			Description: p.Description,
			UnitPrice:   p.Price,
			ImageURL:    p.ImageURL,
			LoadedAt:    loadedAt,
		})
	}

	log.WithFields(logger.Fields{"rows": len(rows)}).Info("transformed products for dimension table")
	return rows
}

// FactRows shapes validated transactions for fact_sales. DateKey is always
// the calendar date of the transaction timestamp; the quality checker
// verifies this invariant post-load.
func (t *Transformer) FactRows(transactions []models.Transaction) []models.FactRow {
	log := t.log.WithComponent("transformer")
	loadedAt := t.clock.Now()

	rows := make([]models.FactRow, 0, len(transactions))
	for _, txn := range transactions {
		rows = append(rows, models.FactRow{
			TransactionID:        txn.TransactionID,
			ProductID:            txn.ProductID,
			CustomerID:           txn.CustomerID,
			TransactionTimestamp: txn.TransactionDate,
			DateKey:              DateKey(txn.TransactionDate),
			Quantity:             txn.Quantity,
			UnitPrice:            txn.UnitPrice,
			TotalAmount:          txn.TotalAmount,
			StoreLocation:        txn.StoreLocation,
			PaymentMethod:        txn.PaymentMethod,
			LoadedAt:             loadedAt,
		})
	}

	log.WithFields(logger.Fields{"rows": len(rows)}).Info("transformed transactions for fact table")
	return rows
}

// DateKey truncates a timestamp to its calendar date.
func DateKey(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// DeriveCustomers builds the customer dimension from transaction data.
// The first occurrence of a customer_id wins: its store location becomes
// the city proxy and its timestamp the first transaction date. Later
// occurrences are ignored, so output depends on input ordering. Name and
// email are placeholders until a real customer source exists.
func (t *Transformer) DeriveCustomers(transactions []models.Transaction) []models.CustomerRow {
	log := t.log.WithComponent("transformer")
	loadedAt := t.clock.Now()

	seen := make(map[string]struct{}, len(transactions))
	rows := make([]models.CustomerRow, 0)
	for _, txn := range transactions {
		if _, ok := seen[txn.CustomerID]; ok {
			continue
		}
		seen[txn.CustomerID] = struct{}{}
		rows = append(rows, models.CustomerRow{
			CustomerID:           txn.CustomerID,
			CustomerName:         "Customer " + txn.CustomerID,
			Email:                nil,
			City:                 txn.StoreLocation,
			Country:              CustomerCountry,
			FirstTransactionDate: txn.TransactionDate,
			LoadedAt:             loadedAt,
		})
	}

	log.WithFields(logger.Fields{"customers": len(rows)}).Info("extracted unique customers")
	return rows
}

// CustomerRows shapes records from the optional customer file for
// dim_customer. Registration date stands in for the first transaction
// date; loading these before the derived rows lets real customer data win
// under insert-or-skip.
func (t *Transformer) CustomerRows(customers []models.CSVCustomer) []models.CustomerRow {
	loadedAt := t.clock.Now()

	rows := make([]models.CustomerRow, 0, len(customers))
	for _, c := range customers {
		country := c.Country
		if country == "" {
			country = CustomerCountry
		}
		rows = append(rows, models.CustomerRow{
			CustomerID:           c.CustomerID,
			CustomerName:         c.Name,
			Email:                c.Email,
			City:                 c.City,
			Country:              country,
			FirstTransactionDate: c.RegistrationDate,
			LoadedAt:             loadedAt,
		})
	}
	return rows
}

// Aggregates summarises a transaction batch for logging and validation.
type Aggregates struct {
	TotalTransactions   int
	TotalRevenue        decimal.Decimal
	TotalQuantity       int64
	UniqueCustomers     int
	UniqueProducts      int
	AvgTransactionValue decimal.Decimal
}

// Fields renders the aggregates as structured log fields.
func (a Aggregates) Fields() logger.Fields {
	return logger.Fields{
		"total_transactions":    a.TotalTransactions,
		"total_revenue":         a.TotalRevenue.String(),
		"total_quantity":        a.TotalQuantity,
		"unique_customers":      a.UniqueCustomers,
		"unique_products":       a.UniqueProducts,
		"avg_transaction_value": a.AvgTransactionValue.String(),
	}
}

// Aggregate computes batch statistics with exact decimal arithmetic. An
// empty batch yields the zero value; the average is only defined for a
// non-empty batch.
func (t *Transformer) Aggregate(transactions []models.Transaction) Aggregates {
	agg := Aggregates{TotalTransactions: len(transactions)}
	if len(transactions) == 0 {
		return agg
	}

	customers := make(map[string]struct{})
	products := make(map[int64]struct{})
	for _, txn := range transactions {
		agg.TotalRevenue = agg.TotalRevenue.Add(txn.TotalAmount)
		agg.TotalQuantity += txn.Quantity
		customers[txn.CustomerID] = struct{}{}
		products[txn.ProductID] = struct{}{}
	}
	agg.UniqueCustomers = len(customers)
	agg.UniqueProducts = len(products)
	agg.AvgTransactionValue = agg.TotalRevenue.Div(decimal.NewFromInt(int64(len(transactions))))
	return agg
}
