// Package pipeline sequences one bounded run: schema init, product load,
// transaction load, quality validation and a summary that always runs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"retailflow/archive"
	"retailflow/config"
	"retailflow/logger"
	"retailflow/models"
	"retailflow/reader/api"
	"retailflow/reader/csvfile"
	"retailflow/transform"
	"retailflow/validate"
	"retailflow/warehouse"
)

// Stats accumulates the outcome of one run. It is owned by the pipeline
// for the lifetime of the run and discarded after the summary is emitted.
type Stats struct {
	RunID                string
	ProductsLoaded       int64
	CustomersLoaded      int64
	TransactionsLoaded   int64
	ProductsRejected     int
	TransactionsRejected int
	QualityPassed        bool
	Errors               []string
	StartedAt            time.Time
	Duration             time.Duration
}

// ProductSource fetches the raw product collection.
type ProductSource interface {
	FetchProducts(ctx context.Context) ([]models.RawProduct, error)
}

// TransactionSource reads and coerces the transaction file.
type TransactionSource interface {
	ReadTransactions(filename string) ([]models.RawTransaction, []models.Rejection, error)
}

// CustomerSource reads the optional customer file.
type CustomerSource interface {
	ReadCustomers(filename string) ([]models.CSVCustomer, error)
}

// Loader applies transformed rows to the warehouse.
type Loader interface {
	LoadProducts(ctx context.Context, rows []models.ProductRow) (int64, error)
	LoadCustomers(ctx context.Context, rows []models.CustomerRow) (int64, error)
	LoadFacts(ctx context.Context, rows []models.FactRow) (int64, error)
}

// QualityRunner executes the post-load checks.
type QualityRunner interface {
	RunChecks(ctx context.Context) ([]warehouse.CheckResult, error)
}

// Archiver persists rejection batches.
type Archiver interface {
	Archive(ctx context.Context, entity string, rejections []models.Rejection) error
}

// Pipeline runs the stages strictly in order. The first stage failure is
// recorded and halts the remaining stages; the summary runs regardless.
type Pipeline struct {
	config       *config.Config
	products     ProductSource
	transactions TransactionSource
	customers    CustomerSource
	transformer  *transform.Transformer
	loader       Loader
	quality      QualityRunner
	archiver     Archiver
	initSchema   func() error
	fetchSummary func(ctx context.Context) (warehouse.Summary, error)
	stats        Stats
	log          *logger.Log
}

// New wires a pipeline from the configuration and an open warehouse pool.
func New(cfg *config.Config, pool *pgxpool.Pool) (*Pipeline, error) {
	runID := uuid.New().String()

	archiver, err := archive.NewRejectArchiver(cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reject archive: %w", err)
	}

	return &Pipeline{
		config:       cfg,
		products:     api.NewProductReader(cfg),
		transactions: csvfile.NewTransactionReader(cfg),
		customers:    csvfile.NewCustomerReader(cfg),
		transformer:  transform.NewTransformer(nil),
		loader:       warehouse.NewLoader(pool),
		quality:      warehouse.NewQualityChecker(pool),
		archiver:     archiver,
		initSchema: func() error {
			return warehouse.InitSchema(cfg.Database.DSN())
		},
		fetchSummary: func(ctx context.Context) (warehouse.Summary, error) {
			return warehouse.FetchSummary(ctx, pool)
		},
		stats: Stats{RunID: runID},
		log:   logger.GetLogger(),
	}, nil
}

// Run executes the full pipeline and returns the accumulated statistics.
func (p *Pipeline) Run(ctx context.Context) Stats {
	p.stats.StartedAt = time.Now()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": p.stats.RunID})

	log.WithFields(logger.Fields{
		"service": p.config.Retailflow.Name,
		"version": p.config.Retailflow.Version,
	}).Info("pipeline starting")

	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"initialize_schema", p.runInitSchema},
		{"load_products", p.runLoadProducts},
		{"load_transactions", p.runLoadTransactions},
		{"validate_quality", p.runValidateQuality},
	}

	for _, stage := range stages {
		stageLog := log.WithFields(logger.Fields{"stage": stage.name})
		stageLog.Info("stage starting")

		if err := stage.fn(ctx); err != nil {
			stageLog.WithError(err).Error("stage failed, halting pipeline")
			p.stats.Errors = append(p.stats.Errors, fmt.Sprintf("%s: %v", stage.name, err))
			break
		}
		stageLog.Info("stage completed")
	}

	// The summary runs no matter which stage failed.
	p.summarize(ctx)

	p.stats.Duration = time.Since(p.stats.StartedAt)
	log.WithFields(logger.Fields{
		"duration_ms": p.stats.Duration.Milliseconds(),
		"errors":      len(p.stats.Errors),
	}).Info("pipeline completed")

	return p.stats
}

func (p *Pipeline) runInitSchema(ctx context.Context) error {
	return p.initSchema()
}

func (p *Pipeline) runLoadProducts(ctx context.Context) error {
	raws, err := p.products.FetchProducts(ctx)
	if err != nil {
		return err
	}

	validated, rejections := validate.ProductBatch(raws)
	p.stats.ProductsRejected += len(rejections)
	p.archiveRejections(ctx, "product", rejections)

	if len(validated) == 0 {
		return fmt.Errorf("no products validated from API response of %d records", len(raws))
	}

	rows := p.transformer.ProductRows(validated)
	affected, err := p.loader.LoadProducts(ctx, rows)
	if err != nil {
		return err
	}
	p.stats.ProductsLoaded = affected

	p.log.LogMetric("pipeline", "products_loaded", affected, "counter", logger.Fields{"run_id": p.stats.RunID})
	return nil
}

func (p *Pipeline) runLoadTransactions(ctx context.Context) error {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": p.stats.RunID})

	raws, coercionRejects, err := p.transactions.ReadTransactions(p.config.CSV.TransactionsFile)
	if err != nil {
		return err
	}

	validated, ruleRejects := validate.TransactionBatch(raws)
	rejections := append(coercionRejects, ruleRejects...)
	p.stats.TransactionsRejected += len(rejections)
	p.archiveRejections(ctx, "transaction", rejections)

	if len(validated) == 0 {
		return fmt.Errorf("no transactions validated from CSV of %d rows", len(raws)+len(coercionRejects))
	}

	aggregates := p.transformer.Aggregate(validated)
	log.WithFields(aggregates.Fields()).Info("transaction summary")

	// Customers load first so facts never reference a dimension row this
	// run failed to write. Enrichment records precede derived ones: under
	// insert-or-skip the earlier write wins.
	customerRows := p.customerRows(validated)
	customersLoaded, err := p.loader.LoadCustomers(ctx, customerRows)
	if err != nil {
		return err
	}
	p.stats.CustomersLoaded = customersLoaded

	factRows := p.transformer.FactRows(validated)
	factsLoaded, err := p.loader.LoadFacts(ctx, factRows)
	if err != nil {
		return err
	}
	p.stats.TransactionsLoaded = factsLoaded

	p.log.LogMetric("pipeline", "customers_loaded", customersLoaded, "counter", logger.Fields{"run_id": p.stats.RunID})
	p.log.LogMetric("pipeline", "transactions_loaded", factsLoaded, "counter", logger.Fields{"run_id": p.stats.RunID})
	return nil
}

func (p *Pipeline) customerRows(validated []models.Transaction) []models.CustomerRow {
	var rows []models.CustomerRow

	csvCustomers, err := p.customers.ReadCustomers(p.config.CSV.CustomersFile)
	if err != nil {
		p.log.WithComponent("pipeline").WithError(err).Warn("skipping customer enrichment file")
	} else {
		rows = p.transformer.CustomerRows(csvCustomers)
	}

	return append(rows, p.transformer.DeriveCustomers(validated)...)
}

func (p *Pipeline) runValidateQuality(ctx context.Context) error {
	results, err := p.quality.RunChecks(ctx)
	if err != nil {
		return err
	}

	p.stats.QualityPassed = warehouse.AllPassed(results)
	if !p.stats.QualityPassed {
		failed := 0
		for _, r := range results {
			if !r.Passed {
				failed++
			}
		}
		return fmt.Errorf("%d of %d quality checks failed", failed, len(results))
	}
	return nil
}

// summarize reports whatever is queryable at this point plus the
// accumulated error list. It never fails the run.
func (p *Pipeline) summarize(ctx context.Context) {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": p.stats.RunID})

	summary, err := p.fetchSummary(ctx)
	if err != nil {
		log.WithError(err).Error("failed to generate summary")
	} else {
		log.WithFields(summary.Fields()).Info("pipeline execution summary")
	}

	if len(p.stats.Errors) > 0 {
		for _, msg := range p.stats.Errors {
			log.WithFields(logger.Fields{"error": msg}).Warn("run error")
		}
	} else {
		log.Info("no errors encountered")
	}
}

func (p *Pipeline) archiveRejections(ctx context.Context, entity string, rejections []models.Rejection) {
	if err := p.archiver.Archive(ctx, entity, rejections); err != nil {
		p.log.WithComponent("pipeline").WithError(err).Warn("failed to archive rejections")
	}
}
