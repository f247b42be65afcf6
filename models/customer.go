package models

import "time"

// Customer is a dimension record derived from transaction data. Name and
// Email are modeling stand-ins until a real customer source exists: the
// name is a placeholder, the email is absent, City comes from the store
// location of the first transaction seen for the id.
type Customer struct {
	CustomerID           string
	Name                 string
	Email                *string
	City                 string
	Country              string
	FirstTransactionDate time.Time
}

// CustomerRow matches the dim_customer column order.
type CustomerRow struct {
	CustomerID           string
	CustomerName         string
	Email                *string
	City                 string
	Country              string
	FirstTransactionDate time.Time
	LoadedAt             time.Time
}

// Args returns the row as positional statement arguments.
func (r CustomerRow) Args() []any {
	return []any{r.CustomerID, r.CustomerName, r.Email, r.City, r.Country, r.FirstTransactionDate, r.LoadedAt}
}

// CSVCustomer is a record from the optional customers file.
type CSVCustomer struct {
	CustomerID       string
	Name             string
	Email            *string
	City             string
	Country          string
	RegistrationDate time.Time
}
