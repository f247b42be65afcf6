package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retailflow/config"
	"retailflow/logger"
	"retailflow/models"
	"retailflow/transform"
	"retailflow/warehouse"
)

type fakeProducts struct {
	raws []models.RawProduct
	err  error
}

func (f *fakeProducts) FetchProducts(ctx context.Context) ([]models.RawProduct, error) {
	return f.raws, f.err
}

type fakeTransactions struct {
	raws   []models.RawTransaction
	called bool
	err    error
}

func (f *fakeTransactions) ReadTransactions(filename string) ([]models.RawTransaction, []models.Rejection, error) {
	f.called = true
	return f.raws, nil, f.err
}

type fakeCustomers struct {
	customers []models.CSVCustomer
}

func (f *fakeCustomers) ReadCustomers(filename string) ([]models.CSVCustomer, error) {
	return f.customers, nil
}

type fakeLoader struct {
	products  []models.ProductRow
	customers []models.CustomerRow
	facts     []models.FactRow
	err       error
}

func (f *fakeLoader) LoadProducts(ctx context.Context, rows []models.ProductRow) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.products = rows
	return int64(len(rows)), nil
}

func (f *fakeLoader) LoadCustomers(ctx context.Context, rows []models.CustomerRow) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.customers = rows
	return int64(len(rows)), nil
}

func (f *fakeLoader) LoadFacts(ctx context.Context, rows []models.FactRow) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.facts = rows
	return int64(len(rows)), nil
}

type fakeQuality struct {
	results []warehouse.CheckResult
	called  bool
	err     error
}

func (f *fakeQuality) RunChecks(ctx context.Context) ([]warehouse.CheckResult, error) {
	f.called = true
	return f.results, f.err
}

type fakeArchiver struct {
	batches map[string]int
}

func (f *fakeArchiver) Archive(ctx context.Context, entity string, rejections []models.Rejection) error {
	if f.batches == nil {
		f.batches = map[string]int{}
	}
	f.batches[entity] += len(rejections)
	return nil
}

func passingChecks() []warehouse.CheckResult {
	return []warehouse.CheckResult{
		{Name: "orphan product references", Passed: true},
		{Name: "no negative amounts", Passed: true},
		{Name: "date consistency", Passed: true},
	}
}

func rawProduct(id int64, title string) models.RawProduct {
	return models.RawProduct{
		ID:    json.Number(fmt.Sprintf("%d", id)),
		Title: title,
		Price: json.Number("9.99"),
	}
}

func rawTransaction(id, customer string) models.RawTransaction {
	return models.RawTransaction{
		TransactionID:   id,
		ProductID:       1,
		CustomerID:      customer,
		Quantity:        1,
		UnitPrice:       decimal.RequireFromString("9.99"),
		TotalAmount:     decimal.RequireFromString("9.99"),
		TransactionDate: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		StoreLocation:   "Berlin",
		PaymentMethod:   "cash",
	}
}

type testPipeline struct {
	pipeline     *Pipeline
	products     *fakeProducts
	transactions *fakeTransactions
	loader       *fakeLoader
	quality      *fakeQuality
	archiver     *fakeArchiver
	summaries    *int
}

func newTestPipeline() *testPipeline {
	products := &fakeProducts{raws: []models.RawProduct{rawProduct(1, "Mouse"), rawProduct(2, "Keyboard")}}
	transactions := &fakeTransactions{raws: []models.RawTransaction{
		rawTransaction("TXN-1", "C1"),
		rawTransaction("TXN-2", "C2"),
	}}
	loader := &fakeLoader{}
	quality := &fakeQuality{results: passingChecks()}
	archiver := &fakeArchiver{}
	summaries := 0

	cfg := &config.Config{
		Retailflow: config.RetailflowConfig{Name: "retailflow-test", Version: "0.0.0"},
		CSV: config.CSVConfig{
			TransactionsFile: "sales_transactions.csv",
			CustomersFile:    "customers.csv",
		},
	}

	p := &Pipeline{
		config:       cfg,
		products:     products,
		transactions: transactions,
		customers:    &fakeCustomers{},
		transformer:  transform.NewTransformer(nil),
		loader:       loader,
		quality:      quality,
		archiver:     archiver,
		initSchema:   func() error { return nil },
		fetchSummary: func(ctx context.Context) (warehouse.Summary, error) {
			summaries++
			return warehouse.Summary{}, nil
		},
		stats: Stats{RunID: "test-run"},
		log:   logger.GetLogger(),
	}

	return &testPipeline{
		pipeline:     p,
		products:     products,
		transactions: transactions,
		loader:       loader,
		quality:      quality,
		archiver:     archiver,
		summaries:    &summaries,
	}
}

func TestRunHappyPath(t *testing.T) {
	tp := newTestPipeline()
	stats := tp.pipeline.Run(context.Background())

	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}
	if stats.ProductsLoaded != 2 {
		t.Errorf("products loaded = %d, want 2", stats.ProductsLoaded)
	}
	if stats.CustomersLoaded != 2 {
		t.Errorf("customers loaded = %d, want 2", stats.CustomersLoaded)
	}
	if stats.TransactionsLoaded != 2 {
		t.Errorf("transactions loaded = %d, want 2", stats.TransactionsLoaded)
	}
	if !stats.QualityPassed {
		t.Error("quality should pass")
	}
	if *tp.summaries != 1 {
		t.Errorf("summary should run exactly once, ran %d times", *tp.summaries)
	}
}

func TestRunHaltsAfterProductFailure(t *testing.T) {
	tp := newTestPipeline()
	tp.products.err = fmt.Errorf("api unreachable")

	stats := tp.pipeline.Run(context.Background())

	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", stats.Errors)
	}
	if !strings.HasPrefix(stats.Errors[0], "load_products:") {
		t.Errorf("error should name the failed stage: %s", stats.Errors[0])
	}
	if tp.transactions.called {
		t.Error("transaction stage must not run after a product failure")
	}
	if tp.quality.called {
		t.Error("quality stage must not run after a product failure")
	}
	if *tp.summaries != 1 {
		t.Error("summary must still run after a failure")
	}
}

func TestRunHaltsAfterSchemaFailure(t *testing.T) {
	tp := newTestPipeline()
	tp.pipeline.initSchema = func() error { return fmt.Errorf("migration failed") }

	stats := tp.pipeline.Run(context.Background())

	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", stats.Errors)
	}
	if !strings.HasPrefix(stats.Errors[0], "initialize_schema:") {
		t.Errorf("error should name the failed stage: %s", stats.Errors[0])
	}
	if stats.ProductsLoaded != 0 {
		t.Error("no products should load after a schema failure")
	}
}

func TestRunRejectionsArchivedAndCounted(t *testing.T) {
	tp := newTestPipeline()
	tp.products.raws = append(tp.products.raws, rawProduct(0, "Ghost"))
	bad := rawTransaction("TXN-3", "C3")
	bad.PaymentMethod = "barter"
	tp.transactions.raws = append(tp.transactions.raws, bad)

	stats := tp.pipeline.Run(context.Background())

	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}
	if stats.ProductsRejected != 1 {
		t.Errorf("products rejected = %d, want 1", stats.ProductsRejected)
	}
	if stats.TransactionsRejected != 1 {
		t.Errorf("transactions rejected = %d, want 1", stats.TransactionsRejected)
	}
	if tp.archiver.batches["product"] != 1 {
		t.Errorf("product rejections archived = %d, want 1", tp.archiver.batches["product"])
	}
	if tp.archiver.batches["transaction"] != 1 {
		t.Errorf("transaction rejections archived = %d, want 1", tp.archiver.batches["transaction"])
	}
}

func TestRunFailsWhenNothingValidates(t *testing.T) {
	tp := newTestPipeline()
	tp.products.raws = []models.RawProduct{rawProduct(0, "")}

	stats := tp.pipeline.Run(context.Background())

	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", stats.Errors)
	}
	if !strings.Contains(stats.Errors[0], "no products validated") {
		t.Errorf("unexpected error: %s", stats.Errors[0])
	}
}

func TestRunQualityFailureRecorded(t *testing.T) {
	tp := newTestPipeline()
	tp.quality.results = []warehouse.CheckResult{
		{Name: "orphan product references", Passed: false},
		{Name: "no negative amounts", Passed: true},
		{Name: "date consistency", Passed: true},
	}

	stats := tp.pipeline.Run(context.Background())

	if stats.QualityPassed {
		t.Error("quality should fail")
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", stats.Errors)
	}
	if !strings.Contains(stats.Errors[0], "1 of 3 quality checks failed") {
		t.Errorf("unexpected error: %s", stats.Errors[0])
	}
	if stats.TransactionsLoaded != 2 {
		t.Errorf("loads before the quality gate must stand, got %d", stats.TransactionsLoaded)
	}
}

func TestCustomerEnrichmentPrecedesDerivedRows(t *testing.T) {
	tp := newTestPipeline()
	email := "ada@example.com"
	tp.pipeline.customers = &fakeCustomers{customers: []models.CSVCustomer{
		{CustomerID: "C1", Name: "Ada", Email: &email, City: "Lyon", Country: "France",
			RegistrationDate: time.Date(2023, 11, 5, 0, 0, 0, 0, time.UTC)},
	}}

	stats := tp.pipeline.Run(context.Background())
	if len(stats.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", stats.Errors)
	}

	rows := tp.loader.customers
	if len(rows) != 3 {
		t.Fatalf("expected 1 enrichment + 2 derived rows, got %d", len(rows))
	}
	if rows[0].CustomerName != "Ada" {
		t.Errorf("enrichment rows must precede derived rows, got %q first", rows[0].CustomerName)
	}
	if rows[1].CustomerName != "Customer C1" || rows[2].CustomerName != "Customer C2" {
		t.Errorf("derived rows should follow: %q, %q", rows[1].CustomerName, rows[2].CustomerName)
	}
}
