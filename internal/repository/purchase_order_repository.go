package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrPurchaseOrderNotFound = errors.New("purchase order not found")
	ErrDuplicateToken        = errors.New("confirmation token already in use")
)

// PurchaseOrderRepository defines the interface for purchase order data access
type PurchaseOrderRepository interface {
	Create(ctx context.Context, order *domain.PurchaseOrder) error
	// ConfirmByToken moves the SENT order holding token to CONFIRMED and clears
	// the token in a single statement
	ConfirmByToken(ctx context.Context, token string, at time.Time) (*domain.PurchaseOrder, error)
	FindByToken(ctx context.Context, token string) (*domain.PurchaseOrder, error)
	FindAll(ctx context.Context) ([]*domain.PurchaseOrder, error)
}

type purchaseOrderRepository struct {
	db *sql.DB
}

// NewPurchaseOrderRepository creates a new instance of PurchaseOrderRepository
func NewPurchaseOrderRepository(db *sql.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

// confirmationTokenConstraint is the unique constraint on purchase_orders.confirmation_token
const confirmationTokenConstraint = "purchase_orders_confirmation_token_key"

const purchaseOrderColumns = `id, vendor_email, product_id, product_name, quantity_to_order, status, confirmation_token, created_by, created_at, confirmed_at`

func scanPurchaseOrder(row rowScanner) (*domain.PurchaseOrder, error) {
	order := &domain.PurchaseOrder{}
	var (
		productID   uuid.NullUUID
		status      string
		token       sql.NullString
		confirmedAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.VendorEmail,
		&productID,
		&order.ProductName,
		&order.QuantityToOrder,
		&status,
		&token,
		&order.CreatedBy,
		&order.CreatedAt,
		&confirmedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = domain.PurchaseOrderStatus(status)
	if productID.Valid {
		id := productID.UUID
		order.ProductID = &id
	}
	if token.Valid {
		t := token.String
		order.ConfirmationToken = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		order.ConfirmedAt = &t
	}
	return order, nil
}

// Create inserts a new purchase order
func (r *purchaseOrderRepository) Create(ctx context.Context, order *domain.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var productID uuid.NullUUID
	if order.ProductID != nil {
		productID = uuid.NullUUID{UUID: *order.ProductID, Valid: true}
	}
	var token sql.NullString
	if order.ConfirmationToken != nil {
		token = sql.NullString{String: *order.ConfirmationToken, Valid: true}
	}
	var confirmedAt sql.NullTime
	if order.ConfirmedAt != nil {
		confirmedAt = sql.NullTime{Time: *order.ConfirmedAt, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.VendorEmail,
		productID,
		order.ProductName,
		order.QuantityToOrder,
		string(order.Status),
		token,
		order.CreatedBy,
		order.CreatedAt,
		confirmedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
			pgErr.ConstraintName == confirmationTokenConstraint {
			return ErrDuplicateToken
		}
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	return nil
}

// ConfirmByToken returns ErrPurchaseOrderNotFound when no SENT order holds the
// token. Of two concurrent calls with the same token only one matches the row.
func (r *purchaseOrderRepository) ConfirmByToken(ctx context.Context, token string, at time.Time) (*domain.PurchaseOrder, error) {
	query := `
		UPDATE purchase_orders
		SET status = 'CONFIRMED', confirmed_at = $2, confirmation_token = NULL
		WHERE confirmation_token = $1 AND status = 'SENT'
		RETURNING ` + purchaseOrderColumns

	order, err := scanPurchaseOrder(r.db.QueryRowContext(ctx, query, token, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseOrderNotFound
		}
		return nil, fmt.Errorf("failed to confirm purchase order: %w", err)
	}

	return order, nil
}

// FindByToken retrieves the purchase order currently holding token
func (r *purchaseOrderRepository) FindByToken(ctx context.Context, token string) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE confirmation_token = $1`

	order, err := scanPurchaseOrder(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseOrderNotFound
		}
		return nil, fmt.Errorf("failed to find purchase order by token: %w", err)
	}

	return order, nil
}

// FindAll returns every purchase order, newest first
func (r *purchaseOrderRepository) FindAll(ctx context.Context) ([]*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.PurchaseOrder{}
	for rows.Next() {
		order, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase orders: %w", err)
	}

	return orders, nil
}
