package warehouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"retailflow/logger"
)

const summarySQL = `
SELECT
    (SELECT COUNT(*) FROM dim_product),
    (SELECT COUNT(*) FROM dim_customer),
    (SELECT COUNT(*) FROM fact_sales),
    (SELECT COALESCE(SUM(total_amount), 0)::text FROM fact_sales)`

// Summary holds the warehouse-wide counts reported at the end of a run.
type Summary struct {
	Products     int64
	Customers    int64
	Transactions int64
	TotalRevenue decimal.Decimal
}

// Fields renders the summary as structured log fields.
func (s Summary) Fields() logger.Fields {
	return logger.Fields{
		"products":      s.Products,
		"customers":     s.Customers,
		"transactions":  s.Transactions,
		"total_revenue": s.TotalRevenue.String(),
	}
}

// FetchSummary queries the current warehouse totals.
func FetchSummary(ctx context.Context, db RowQuerier) (Summary, error) {
	var (
		summary Summary
		revenue string
	)
	if err := db.QueryRow(ctx, summarySQL).Scan(
		&summary.Products,
		&summary.Customers,
		&summary.Transactions,
		&revenue,
	); err != nil {
		return Summary{}, fmt.Errorf("summary query failed: %w", err)
	}

	total, err := decimal.NewFromString(revenue)
	if err != nil {
		return Summary{}, fmt.Errorf("unparseable total revenue %q: %w", revenue, err)
	}
	summary.TotalRevenue = total
	return summary, nil
}
