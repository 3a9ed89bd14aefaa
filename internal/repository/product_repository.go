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
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrQuantityOutOfRange is returned when the resulting stock level does
	// not fit the quantity column
	ErrQuantityOutOfRange = errors.New("stock level out of range")
)

// StockChange describes one quantity mutation and the ledger entry that records it
type StockChange struct {
	ProductID uuid.UUID
	Type      domain.TransactionType
	Quantity  int
	HandledBy string
	At        time.Time
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product, handledBy string) (*domain.Transaction, error)
	Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate, at time.Time) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindAll(ctx context.Context) ([]*domain.Product, error)

	// AdjustStock applies change and appends its transaction atomically. On
	// ErrInsufficientStock the current product is returned with the error.
	AdjustStock(ctx context.Context, change StockChange) (*domain.Product, *domain.Transaction, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, category, image_url, quantity, price, expiry_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var expiry sql.NullTime
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.ImageURL,
		&product.Quantity,
		&product.Price,
		&expiry,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiry.Valid {
		t := expiry.Time
		product.ExpiryDate = &t
	}
	return product, nil
}

func nullableDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new product. A positive opening quantity is recorded as a
// STOCK-IN transaction in the same database transaction.
func (r *productRepository) Create(ctx context.Context, product *domain.Product, handledBy string) (*domain.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.ImageURL,
		product.Quantity,
		product.Price,
		nullableDate(product.ExpiryDate),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	var opening *domain.Transaction
	if product.Quantity > 0 {
		opening = &domain.Transaction{
			ID:          uuid.New(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Type:        domain.TransactionStockIn,
			Quantity:    product.Quantity,
			HandledBy:   handledBy,
			Timestamp:   product.CreatedAt,
		}
		if err := insertTransaction(ctx, tx, opening); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	return opening, nil
}

// Update changes the catalog attributes of a product, leaving quantity untouched
func (r *productRepository) Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate, at time.Time) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, image_url = $5,
		    price = $6, expiry_date = $7, updated_at = $8
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(
		ctx,
		query,
		id,
		update.Name,
		update.Description,
		update.Category,
		update.ImageURL,
		update.Price,
		nullableDate(update.ExpiryDate),
		at,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// Delete removes a product. Its transactions are kept.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindAll retrieves every product ordered by name
func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// AdjustStock runs a conditional update of the product row and the ledger
// insert in one transaction. The row lock taken by the update serializes
// concurrent adjustments of the same product only.
func (r *productRepository) AdjustStock(ctx context.Context, change StockChange) (*domain.Product, *domain.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var query string
	if change.Type.Removes() {
		query = `
			UPDATE products
			SET quantity = quantity - $2, updated_at = $3
			WHERE id = $1 AND quantity >= $2
			RETURNING ` + productColumns
	} else {
		query = `
			UPDATE products
			SET quantity = quantity + $2, updated_at = $3
			WHERE id = $1
			RETURNING ` + productColumns
	}

	product, err := scanProduct(tx.QueryRowContext(ctx, query, change.ProductID, change.Quantity, change.At))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.NumericValueOutOfRange {
			return nil, nil, ErrQuantityOutOfRange
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("failed to adjust stock: %w", err)
		}

		current, err := scanProduct(tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, change.ProductID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, ErrProductNotFound
			}
			return nil, nil, fmt.Errorf("failed to find product by ID: %w", err)
		}
		return current, nil, ErrInsufficientStock
	}

	entry := &domain.Transaction{
		ID:          uuid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        change.Type,
		Quantity:    change.Quantity,
		HandledBy:   change.HandledBy,
		Timestamp:   change.At,
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}

	return product, entry, nil
}
