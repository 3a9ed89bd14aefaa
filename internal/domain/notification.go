package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the alert condition
type NotificationType string

const (
	NotificationLowStock       NotificationType = "LOW_STOCK"
	NotificationExpiryWarning  NotificationType = "EXPIRY_WARNING"
	NotificationExpiryCritical NotificationType = "EXPIRY_CRITICAL"
)

// Notification is an alert derived from catalog state. At most one unread
// notification exists per (ProductID, Type).
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	ProductID uuid.UUID        `json:"product_id" db:"product_id"`
	Message   string           `json:"message" db:"message"`
	Type      NotificationType `json:"type" db:"type"`
	Read      bool             `json:"read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
