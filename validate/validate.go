// Package validate turns raw source records into validated ones. Every
// function is pure per record; batch helpers partition their input into a
// validated subset and an ordered rejection list without ever aborting.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retailflow/logger"
	"retailflow/models"
)

// DefaultDescription is stored when the API omits a product description.
const DefaultDescription = "No description"

var paymentMethods = map[string]struct{}{
	"cash":        {},
	"credit_card": {},
	"debit_card":  {},
	"online":      {},
}

// Product validates a single raw product record.
func Product(raw models.RawProduct) (models.Product, error) {
	id, err := raw.ID.Int64()
	if err != nil {
		return models.Product{}, fmt.Errorf("product_id %q is not an integer", raw.ID.String())
	}
	if id <= 0 {
		return models.Product{}, fmt.Errorf("product_id must be positive, got %d", id)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return models.Product{}, fmt.Errorf("title cannot be empty")
	}

	price, err := decimal.NewFromString(raw.Price.String())
	if err != nil {
		return models.Product{}, fmt.Errorf("price %q is not a decimal", raw.Price.String())
	}
	if !price.IsPositive() {
		return models.Product{}, fmt.Errorf("price must be positive, got %s", price)
	}

	description := DefaultDescription
	if raw.Description != nil && strings.TrimSpace(*raw.Description) != "" {
		description = *raw.Description
	}

	return models.Product{
		ProductID:   id,
		Title:       title,
		Price:       price,
		Category:    raw.Category,
		Description: description,
		ImageURL:    raw.Image,
	}, nil
}

// Transaction validates a single coerced transaction record.
func Transaction(raw models.RawTransaction) (models.Transaction, error) {
	if raw.TransactionID == "" {
		return models.Transaction{}, fmt.Errorf("transaction_id cannot be empty")
	}
	if raw.CustomerID == "" {
		return models.Transaction{}, fmt.Errorf("customer_id cannot be empty")
	}
	if raw.Quantity <= 0 {
		return models.Transaction{}, fmt.Errorf("quantity must be positive, got %d", raw.Quantity)
	}
	if raw.UnitPrice.IsNegative() {
		return models.Transaction{}, fmt.Errorf("unit_price cannot be negative, got %s", raw.UnitPrice)
	}
	if raw.TotalAmount.IsNegative() {
		return models.Transaction{}, fmt.Errorf("total_amount cannot be negative, got %s", raw.TotalAmount)
	}

	method := strings.ToLower(raw.PaymentMethod)
	if _, ok := paymentMethods[method]; !ok {
		return models.Transaction{}, fmt.Errorf("invalid payment method %q", raw.PaymentMethod)
	}

	return models.Transaction{
		TransactionID:   raw.TransactionID,
		ProductID:       raw.ProductID,
		CustomerID:      raw.CustomerID,
		Quantity:        raw.Quantity,
		UnitPrice:       raw.UnitPrice,
		TotalAmount:     raw.TotalAmount,
		TransactionDate: raw.TransactionDate,
		StoreLocation:   raw.StoreLocation,
		PaymentMethod:   method,
	}, nil
}

// ProductBatch validates every record independently. A failed record is
// logged and collected as a rejection, never raised.
func ProductBatch(raws []models.RawProduct) ([]models.Product, []models.Rejection) {
	log := logger.GetLogger().WithComponent("validator")

	validated := make([]models.Product, 0, len(raws))
	var rejections []models.Rejection

	for _, raw := range raws {
		product, err := Product(raw)
		if err != nil {
			key := raw.ID.String()
			if key == "" {
				key = "unknown"
			}
			rejections = append(rejections, models.Rejection{
				Entity: "product",
				Key:    key,
				Reason: err.Error(),
				At:     time.Now(),
			})
			log.WithFields(logger.Fields{"product_id": key}).Warn(fmt.Sprintf("validation failed: %v", err))
			continue
		}
		validated = append(validated, product)
	}

	if len(rejections) > 0 {
		log.WithFields(logger.Fields{"rejected": len(rejections)}).Warn("failed to validate products")
	}
	return validated, rejections
}

// TransactionBatch validates every record independently, mirroring
// ProductBatch.
func TransactionBatch(raws []models.RawTransaction) ([]models.Transaction, []models.Rejection) {
	log := logger.GetLogger().WithComponent("validator")

	validated := make([]models.Transaction, 0, len(raws))
	var rejections []models.Rejection

	for _, raw := range raws {
		txn, err := Transaction(raw)
		if err != nil {
			key := raw.TransactionID
			if key == "" {
				key = "unknown"
			}
			rejections = append(rejections, models.Rejection{
				Entity: "transaction",
				Key:    key,
				Reason: err.Error(),
				At:     time.Now(),
			})
			log.WithFields(logger.Fields{"transaction_id": key}).Warn(fmt.Sprintf("validation failed: %v", err))
			continue
		}
		validated = append(validated, txn)
	}

	if len(rejections) > 0 {
		log.WithFields(logger.Fields{"rejected": len(rejections)}).Warn("failed to validate transactions")
	}
	return validated, rejections
}
