package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType is the direction of a stock movement
type TransactionType string

const (
	TransactionStockIn  TransactionType = "STOCK-IN"
	TransactionStockOut TransactionType = "STOCK-OUT"
	TransactionSale     TransactionType = "SALE"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionStockIn, TransactionStockOut, TransactionSale:
		return true
	}
	return false
}

// Removes reports whether the type takes stock out of the warehouse
func (t TransactionType) Removes() bool {
	return t == TransactionStockOut || t == TransactionSale
}

// Transaction is an immutable ledger entry. ProductID is a weak reference:
// the product may since have been deleted.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Type        TransactionType `json:"type" db:"type"`
	Quantity    int             `json:"quantity" db:"quantity"`
	HandledBy   string          `json:"handled_by" db:"handled_by"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}
