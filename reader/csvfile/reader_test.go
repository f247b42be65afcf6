package csvfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retailflow/config"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func csvConfig(dir string) *config.Config {
	return &config.Config{CSV: config.CSVConfig{Dir: dir}}
}

const transactionsHeader = "transaction_id,product_id,customer_id,quantity,unit_price,total_amount,transaction_date,store_location,payment_method\n"

func TestReadTransactions(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", transactionsHeader+
		"TXN-1,1,C1,2,19.99,39.98,2024-03-15 10:00:00,Berlin,cash\n"+
		"TXN-2,2,C2,1,5.00,5.00,2024-03-16T08:30:00,Hamburg,credit_card\n")

	reader := NewTransactionReader(csvConfig(dir))
	records, rejections, err := reader.ReadTransactions("sales.csv")
	if err != nil {
		t.Fatalf("ReadTransactions failed: %v", err)
	}
	if len(rejections) != 0 {
		t.Fatalf("expected no rejections, got %d", len(rejections))
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.TransactionID != "TXN-1" {
		t.Errorf("unexpected transaction_id: %s", first.TransactionID)
	}
	if first.Quantity != 2 {
		t.Errorf("unexpected quantity: %d", first.Quantity)
	}
	if first.UnitPrice.String() != "19.99" {
		t.Errorf("unexpected unit price: %s", first.UnitPrice)
	}
	want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	if !first.TransactionDate.Equal(want) {
		t.Errorf("unexpected transaction date: %s", first.TransactionDate)
	}
}

func TestReadTransactionsRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", transactionsHeader+
		"TXN-1,1,C1,2,19.99,39.98,2024-03-15 10:00:00,Berlin,cash\n"+
		"TXN-2,not-a-number,C2,1,5.00,5.00,2024-03-16 08:30:00,Hamburg,cash\n"+
		"TXN-3,3,C3,1,abc,5.00,2024-03-16 08:30:00,Hamburg,cash\n"+
		"TXN-4,4,C4,1,5.00,5.00,when?,Hamburg,cash\n")

	reader := NewTransactionReader(csvConfig(dir))
	records, rejections, err := reader.ReadTransactions("sales.csv")
	if err != nil {
		t.Fatalf("ReadTransactions failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 good record, got %d", len(records))
	}
	if len(rejections) != 3 {
		t.Fatalf("expected 3 rejections, got %d", len(rejections))
	}
	if rejections[0].Key != "TXN-2" {
		t.Errorf("rejection should carry the transaction id, got %q", rejections[0].Key)
	}
	for _, r := range rejections {
		if r.Reason == "" {
			t.Error("rejection is missing a reason")
		}
	}
}

func TestReadTransactionsMissingFile(t *testing.T) {
	reader := NewTransactionReader(csvConfig(t.TempDir()))
	_, _, err := reader.ReadTransactions("absent.csv")
	if err == nil {
		t.Fatal("expected error for missing transaction file")
	}
	if !strings.Contains(err.Error(), "CSV file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadTransactionsMissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "transaction_id,product_id\nTXN-1,1\n")

	reader := NewTransactionReader(csvConfig(dir))
	_, _, err := reader.ReadTransactions("sales.csv")
	if err == nil {
		t.Fatal("expected error for missing header column")
	}
	if !strings.Contains(err.Error(), "missing column") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadCustomers(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "customers.csv",
		"customer_id,customer_name,email,city,country,registration_date\n"+
			"C1,Ada,ada@example.com,Lyon,France,2023-11-05\n"+
			"C2,Bo,,Berlin,,2024-01-20\n")

	reader := NewCustomerReader(csvConfig(dir))
	customers, err := reader.ReadCustomers("customers.csv")
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	if customers[0].Email == nil || *customers[0].Email != "ada@example.com" {
		t.Errorf("unexpected email: %v", customers[0].Email)
	}
	if customers[1].Email != nil {
		t.Errorf("blank email must stay nil")
	}
	if customers[1].Country != "" {
		t.Errorf("country should stay empty for the transformer to fill, got %q", customers[1].Country)
	}
}

func TestReadCustomersMissingFileIsNotAnError(t *testing.T) {
	reader := NewCustomerReader(csvConfig(t.TempDir()))
	customers, err := reader.ReadCustomers("absent.csv")
	if err != nil {
		t.Fatalf("missing customer file must not fail: %v", err)
	}
	if customers != nil {
		t.Errorf("expected empty batch, got %d customers", len(customers))
	}
}

func TestReadCustomersSkipsBadRegistrationDate(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "customers.csv",
		"customer_id,customer_name,registration_date\n"+
			"C1,Ada,2023-11-05\n"+
			"C2,Bo,never\n")

	reader := NewCustomerReader(csvConfig(dir))
	customers, err := reader.ReadCustomers("customers.csv")
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	if customers[0].CustomerID != "C1" {
		t.Errorf("unexpected customer: %s", customers[0].CustomerID)
	}
}
