package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stockledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSold is the total SALE quantity of a product over a period
type ProductSold struct {
	ProductID uuid.UUID
	Quantity  int
}

// TransactionRepository reads the append-only ledger. Entries are written
// only by ProductRepository, together with the quantity change.
type TransactionRepository interface {
	Recent(ctx context.Context, limit int) ([]*domain.Transaction, error)
	SalesStats(ctx context.Context, from, to time.Time) (orders int, revenue decimal.Decimal, err error)
	TopSelling(ctx context.Context, from *time.Time, to time.Time, limit int) ([]ProductSold, error)
}

type transactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new instance of TransactionRepository
func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, entry *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, product_id, product_name, type, quantity, handled_by, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ProductID,
		entry.ProductName,
		string(entry.Type),
		entry.Quantity,
		entry.HandledBy,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	return nil
}

// Recent returns the latest transactions, newest first
func (r *transactionRepository) Recent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT id, product_id, product_name, type, quantity, handled_by, timestamp
		FROM transactions
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	entries := []*domain.Transaction{}
	for rows.Next() {
		entry := &domain.Transaction{}
		var txType string
		err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.ProductName,
			&txType,
			&entry.Quantity,
			&entry.HandledBy,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entry.Type = domain.TransactionType(txType)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return entries, nil
}

// SalesStats counts SALE transactions in [from, to] and values them at the
// current product price. Sales of deleted products count as orders with no revenue.
func (r *transactionRepository) SalesStats(ctx context.Context, from, to time.Time) (int, decimal.Decimal, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(t.quantity * p.price), 0)
		FROM transactions t
		LEFT JOIN products p ON p.id = t.product_id
		WHERE t.type = 'SALE' AND t.timestamp BETWEEN $1 AND $2
	`

	var orders int
	var revenue decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, from, to).Scan(&orders, &revenue); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	return orders, revenue, nil
}

// TopSelling returns products ranked by sold quantity. A nil from means all time.
func (r *transactionRepository) TopSelling(ctx context.Context, from *time.Time, to time.Time, limit int) ([]ProductSold, error) {
	var start sql.NullTime
	if from != nil {
		start = sql.NullTime{Time: *from, Valid: true}
	}

	query := `
		SELECT product_id, SUM(quantity) AS sold
		FROM transactions
		WHERE type = 'SALE'
		  AND ($1::timestamptz IS NULL OR timestamp >= $1)
		  AND timestamp <= $2
		GROUP BY product_id
		ORDER BY sold DESC, product_id ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, start, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}
	defer rows.Close()

	ranked := []ProductSold{}
	for rows.Next() {
		var item ProductSold
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		ranked = append(ranked, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return ranked, nil
}
