package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retailflow/logger"
	"retailflow/models"
)

// Conn is the subset of pgxpool.Pool the loader needs. Each load acquires
// its own transaction; nothing is held across pipeline stages.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const upsertProductSQL = `
INSERT INTO dim_product
    (product_id, product_name, category, description, unit_price, image_url, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (product_id)
DO UPDATE SET
    product_name = EXCLUDED.product_name,
    category = EXCLUDED.category,
    description = EXCLUDED.description,
    unit_price = EXCLUDED.unit_price,
    image_url = EXCLUDED.image_url,
    updated_at = CURRENT_TIMESTAMP`

const insertCustomerSQL = `
INSERT INTO dim_customer
    (customer_id, customer_name, email, city, country, first_transaction_date, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (customer_id) DO NOTHING`

const insertFactSQL = `
INSERT INTO fact_sales
    (transaction_id, product_id, customer_id, transaction_timestamp,
     date_key, quantity, unit_price, total_amount, store_location,
     payment_method, loaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (transaction_id) DO NOTHING`

// Loader applies transformed rows to the warehouse. Products are upserted
// so reruns converge to the latest fetched state; customers and facts are
// insert-or-skip so reruns never overwrite dimensions or double-count
// revenue. Every load call is one all-or-nothing transaction.
type Loader struct {
	db  Conn
	log *logger.Log
}

// NewLoader creates a Loader on top of an open connection pool.
func NewLoader(db Conn) *Loader {
	return &Loader{
		db:  db,
		log: logger.GetLogger(),
	}
}

// LoadProducts upserts product dimension rows and reports rows affected.
func (l *Loader) LoadProducts(ctx context.Context, rows []models.ProductRow) (int64, error) {
	argSets := make([][]any, len(rows))
	for i, row := range rows {
		argSets[i] = row.Args()
	}
	return l.load(ctx, "dim_product", upsertProductSQL, argSets)
}

// LoadCustomers inserts customer dimension rows, skipping ids that already
// exist. An existing customer record is never overwritten.
func (l *Loader) LoadCustomers(ctx context.Context, rows []models.CustomerRow) (int64, error) {
	argSets := make([][]any, len(rows))
	for i, row := range rows {
		argSets[i] = row.Args()
	}
	return l.load(ctx, "dim_customer", insertCustomerSQL, argSets)
}

// LoadFacts inserts fact rows keyed by transaction_id, skipping duplicates.
func (l *Loader) LoadFacts(ctx context.Context, rows []models.FactRow) (int64, error) {
	argSets := make([][]any, len(rows))
	for i, row := range rows {
		argSets[i] = row.Args()
	}
	return l.load(ctx, "fact_sales", insertFactSQL, argSets)
}

// load executes the statement for every arg set in a single batched
// transaction. Skipped conflicts contribute zero to the affected count.
func (l *Loader) load(ctx context.Context, table string, sql string, argSets [][]any) (int64, error) {
	log := l.log.WithComponent("warehouse").WithFields(logger.Fields{"table": table})

	if len(argSets) == 0 {
		log.Debug("no rows to load")
		return 0, nil
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction for %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, args := range argSets {
		batch.Queue(sql, args...)
	}

	results := tx.SendBatch(ctx, batch)
	var affected int64
	for range argSets {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("load into %s: %w", table, err)
		}
		affected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch for %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit load into %s: %w", table, err)
	}

	log.WithFields(logger.Fields{
		"rows":     len(argSets),
		"affected": affected,
	}).Info("batch loaded")

	return affected, nil
}
