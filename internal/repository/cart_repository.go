package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for per-user cart storage
type CartRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// AddOrMerge appends a line, or sums quantities into the existing line for the product
	AddOrMerge(ctx context.Context, userID uuid.UUID, item domain.CartItem) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	RemoveProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// Get returns the cart lines of a user in insertion order
func (r *cartRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `
		SELECT product_id, quantity, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	defer rows.Close()

	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return cart, nil
}

// AddOrMerge inserts the line or adds to the quantity of the existing one,
// keeping its original position
func (r *cartRepository) AddOrMerge(ctx context.Context, userID uuid.UUID, item domain.CartItem) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`

	addedAt := item.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	if _, err := r.db.ExecContext(ctx, query, userID, item.ProductID, item.Quantity, addedAt); err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}

	return nil
}

// Remove deletes a single line from the cart
func (r *cartRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// RemoveProducts deletes the lines for the given products, ignoring ones not in the cart
func (r *cartRepository) RemoveProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}

	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = id.String()
	}

	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2::uuid[])`

	if _, err := r.db.ExecContext(ctx, query, userID, ids); err != nil {
		return fmt.Errorf("failed to remove cart items: %w", err)
	}

	return nil
}

// Clear empties the cart of a user
func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}
