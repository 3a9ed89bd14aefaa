package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds the units in one stock movement, cart line, opening
// stock or purchase order
const MaxQuantity = 1_000_000

// Product represents a stocked item in the catalog. Quantity is only
// changed through the stock ledger.
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries the editable catalog attributes. Quantity is not
// editable here.
type ProductUpdate struct {
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       decimal.Decimal
	ExpiryDate  *time.Time
}
