package domain

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseOrderStatus is the lifecycle state of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderSent      PurchaseOrderStatus = "SENT"
	PurchaseOrderConfirmed PurchaseOrderStatus = "CONFIRMED"
)

// PurchaseOrder is a restock request sent to a vendor.
// ConfirmationToken is set only while the order is SENT.
type PurchaseOrder struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	VendorEmail       string              `json:"vendor_email" db:"vendor_email"`
	ProductID         *uuid.UUID          `json:"product_id,omitempty" db:"product_id"`
	ProductName       string              `json:"product_name" db:"product_name"`
	QuantityToOrder   int                 `json:"quantity_to_order" db:"quantity_to_order"`
	Status            PurchaseOrderStatus `json:"status" db:"status"`
	ConfirmationToken *string             `json:"-" db:"confirmation_token"`
	CreatedBy         string              `json:"created_by" db:"created_by"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	ConfirmedAt       *time.Time          `json:"confirmed_at,omitempty" db:"confirmed_at"`
}
