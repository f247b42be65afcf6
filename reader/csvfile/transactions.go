// Package csvfile reads bounded CSV batches of transaction and customer
// records, coercing columns to their declared types before validation.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retailflow/config"
	"retailflow/logger"
	"retailflow/models"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TransactionReader loads sales transactions from the configured CSV
// directory. A missing file is fatal; a row that fails coercion is logged,
// counted and excluded like any validation rejection.
type TransactionReader struct {
	dir string
	log *logger.Log
}

// NewTransactionReader creates a TransactionReader from the csv section of
// the configuration.
func NewTransactionReader(cfg *config.Config) *TransactionReader {
	return &TransactionReader{
		dir: cfg.CSV.Dir,
		log: logger.GetLogger(),
	}
}

// ReadTransactions parses the named file into typed raw transaction
// records plus a rejection list for rows that failed coercion.
func (r *TransactionReader) ReadTransactions(filename string) ([]models.RawTransaction, []models.Rejection, error) {
	path := filepath.Join(r.dir, filename)
	log := r.log.WithComponent("csv_reader").WithFields(logger.Fields{"path": path})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error("transaction file not found")
			return nil, nil, fmt.Errorf("CSV file not found: %s", path)
		}
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	log.Info("loading transactions from CSV")

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := columnIndex(header,
		"transaction_id", "product_id", "customer_id", "quantity",
		"unit_price", "total_amount", "transaction_date", "store_location",
		"payment_method")
	if err != nil {
		return nil, nil, err
	}

	var (
		records    []models.RawTransaction
		rejections []models.Rejection
		rowNum     int
	)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			rejections = append(rejections, rejectRow(log, rowNum, "", err))
			continue
		}

		record, err := coerceTransaction(row, columns)
		if err != nil {
			rejections = append(rejections, rejectRow(log, rowNum, field(row, columns["transaction_id"]), err))
			continue
		}
		records = append(records, record)
	}

	log.WithFields(logger.Fields{
		"rows":     rowNum,
		"loaded":   len(records),
		"rejected": len(rejections),
	}).Info("loaded transactions from CSV")

	return records, rejections, nil
}

func coerceTransaction(row []string, columns map[string]int) (models.RawTransaction, error) {
	productID, err := strconv.ParseInt(field(row, columns["product_id"]), 10, 64)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("product_id is not an integer: %w", err)
	}
	quantity, err := strconv.ParseInt(field(row, columns["quantity"]), 10, 64)
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("quantity is not an integer: %w", err)
	}
	unitPrice, err := decimal.NewFromString(field(row, columns["unit_price"]))
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("unit_price is not a decimal: %w", err)
	}
	totalAmount, err := decimal.NewFromString(field(row, columns["total_amount"]))
	if err != nil {
		return models.RawTransaction{}, fmt.Errorf("total_amount is not a decimal: %w", err)
	}
	transactionDate, err := parseTimestamp(field(row, columns["transaction_date"]))
	if err != nil {
		return models.RawTransaction{}, err
	}

	return models.RawTransaction{
		TransactionID:   field(row, columns["transaction_id"]),
		ProductID:       productID,
		CustomerID:      field(row, columns["customer_id"]),
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		TotalAmount:     totalAmount,
		TransactionDate: transactionDate,
		StoreLocation:   field(row, columns["store_location"]),
		PaymentMethod:   field(row, columns["payment_method"]),
	}, nil
}

// columnIndex maps required column names to their positions in the header.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", name)
		}
	}
	return columns, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func rejectRow(log *logger.Entry, rowNum int, key string, err error) models.Rejection {
	if key == "" {
		key = fmt.Sprintf("row %d", rowNum)
	}
	log.WithFields(logger.Fields{"row": rowNum, "transaction_id": key}).Warn(fmt.Sprintf("coercion failed: %v", err))
	return models.Rejection{
		Entity: "transaction",
		Key:    key,
		Reason: err.Error(),
		At:     time.Now(),
	}
}
