package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retailflow/logger"
)

// RowQuerier is the subset of pgxpool.Pool needed for single-row checks.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orphanFactsSQL = `
SELECT COUNT(*)
FROM fact_sales f
LEFT JOIN dim_product p ON f.product_id = p.product_id
WHERE p.product_id IS NULL`

const negativeAmountsSQL = `
SELECT COUNT(*)
FROM fact_sales
WHERE total_amount < 0`

const dateMismatchSQL = `
SELECT COUNT(*)
FROM fact_sales
WHERE date_key != DATE(transaction_timestamp)`

// CheckResult reports one quality check outcome.
type CheckResult struct {
	Name   string
	Passed bool
}

// QualityChecker runs post-load invariant checks against the persisted
// warehouse state. Checks are independent: a failed check is reported, not
// raised, and never halts the remaining checks.
type QualityChecker struct {
	db  RowQuerier
	log *logger.Log
}

// NewQualityChecker creates a QualityChecker on top of an open pool.
func NewQualityChecker(db RowQuerier) *QualityChecker {
	return &QualityChecker{
		db:  db,
		log: logger.GetLogger(),
	}
}

// RunChecks executes every check and reports per-check pass/fail. The
// returned error is non-nil only when a check could not be executed at all.
func (q *QualityChecker) RunChecks(ctx context.Context) ([]CheckResult, error) {
	log := q.log.WithComponent("quality_checker")

	checks := []struct {
		name string
		sql  string
	}{
		{"orphan product references", orphanFactsSQL},
		{"no negative amounts", negativeAmountsSQL},
		{"date consistency", dateMismatchSQL},
	}

	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		var violations int64
		if err := q.db.QueryRow(ctx, check.sql).Scan(&violations); err != nil {
			return nil, fmt.Errorf("quality check %q failed to execute: %w", check.name, err)
		}

		passed := violations == 0
		entry := log.WithFields(logger.Fields{"check": check.name, "violations": violations})
		if passed {
			entry.Info("quality check passed")
		} else {
			entry.Warn("quality check failed")
		}
		results = append(results, CheckResult{Name: check.name, Passed: passed})
	}

	return results, nil
}

// AllPassed reports whether the overall quality gate passed.
func AllPassed(results []CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
