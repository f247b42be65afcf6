package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"retailflow/config"
	"retailflow/logger"
	"retailflow/models"
)

// CustomerReader loads the optional customer enrichment file. Unlike the
// transaction file, a missing customer file is not an error: the customer
// dimension can always be derived from transactions alone.
type CustomerReader struct {
	dir string
	log *logger.Log
}

// NewCustomerReader creates a CustomerReader from the csv section of the
// configuration.
func NewCustomerReader(cfg *config.Config) *CustomerReader {
	return &CustomerReader{
		dir: cfg.CSV.Dir,
		log: logger.GetLogger(),
	}
}

// ReadCustomers parses the named file when it exists and returns an empty
// batch otherwise.
func (r *CustomerReader) ReadCustomers(filename string) ([]models.CSVCustomer, error) {
	path := filepath.Join(r.dir, filename)
	log := r.log.WithComponent("csv_reader").WithFields(logger.Fields{"path": path})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("customer file not found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open customer file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read customer CSV header: %w", err)
	}
	columns, err := columnIndex(header, "customer_id", "customer_name", "registration_date")
	if err != nil {
		return nil, err
	}

	var customers []models.CSVCustomer
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			log.WithFields(logger.Fields{"row": rowNum}).Warn(fmt.Sprintf("skipping malformed customer row: %v", err))
			continue
		}

		registered, err := parseTimestamp(field(row, columns["registration_date"]))
		if err != nil {
			log.WithFields(logger.Fields{"row": rowNum}).Warn(fmt.Sprintf("skipping customer row: %v", err))
			continue
		}

		customer := models.CSVCustomer{
			CustomerID:       field(row, columns["customer_id"]),
			Name:             field(row, columns["customer_name"]),
			RegistrationDate: registered,
		}
		if idx, ok := columns["email"]; ok {
			if email := field(row, idx); email != "" {
				customer.Email = &email
			}
		}
		if idx, ok := columns["city"]; ok {
			customer.City = field(row, idx)
		}
		if idx, ok := columns["country"]; ok {
			customer.Country = field(row, idx)
		}
		customers = append(customers, customer)
	}

	log.WithFields(logger.Fields{"loaded": len(customers)}).Info("loaded customers from CSV")
	return customers, nil
}
