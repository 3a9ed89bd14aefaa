package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity        = errors.New("quantity must be between 1 and 1000000")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrMissingActor           = errors.New("caller identity is required")
	ErrInvalidProduct         = errors.New("invalid product attributes")
	ErrInvalidVendorEmail     = errors.New("invalid vendor email")
	ErrInvalidPeriod          = errors.New("invalid period")
	ErrStockLimitExceeded     = errors.New("resulting stock level exceeds the supported maximum")

	ErrProductNotFound       = errors.New("product not found")
	ErrCartItemNotFound      = errors.New("item not found in cart")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrPurchaseOrderNotFound = errors.New("purchase order not found")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")

	// ErrInvalidToken never says whether the token existed
	ErrInvalidToken = errors.New("invalid or expired purchase order link")

	ErrExternalService = errors.New("external service failure")
)

// InsufficientStockError names the product that could not cover a request
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PartialCheckoutError reports a checkout whose commit phase stopped part way.
// Lines in Result.Committed were sold and are not rolled back. A non-nil
// CleanupErr means those lines are still in the cart and must not be
// checked out again.
type PartialCheckoutError struct {
	Result     *CheckoutResult
	Cause      error
	CleanupErr error
}

func (e *PartialCheckoutError) Error() string {
	msg := fmt.Sprintf("checkout partially committed: %d line(s) committed, %d line(s) failed: %v",
		len(e.Result.Committed), len(e.Result.Failed), e.Cause)
	if e.CleanupErr != nil {
		msg += fmt.Sprintf(" (committed lines still in cart: %v)", e.CleanupErr)
	}
	return msg
}

func (e *PartialCheckoutError) Unwrap() []error {
	if e.CleanupErr != nil {
		return []error{e.Cause, e.CleanupErr}
	}
	return []error{e.Cause}
}

// EmailDeliveryError is returned when a purchase order was stored but the
// vendor email could not be sent
type EmailDeliveryError struct {
	Recipient string
	Cause     error
}

func (e *EmailDeliveryError) Error() string {
	return fmt.Sprintf("failed to send email to %s: %v", e.Recipient, e.Cause)
}

func (e *EmailDeliveryError) Unwrap() []error {
	return []error{ErrExternalService, e.Cause}
}
