package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stockledger/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// UpsertUnread creates an unread notification for (ProductID, Type), or
	// refreshes the message of the existing unread one. It reports whether a
	// row was inserted.
	UpsertUnread(ctx context.Context, n *domain.Notification) (bool, error)
	// ResolveUnread marks the unread notification for (productID, type) as read
	ResolveUnread(ctx context.Context, productID uuid.UUID, notificationType domain.NotificationType) (bool, error)
	FindAll(ctx context.Context) ([]*domain.Notification, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// UpsertUnread relies on the partial unique index over unread rows, so
// concurrent scans cannot create duplicates. created_at is kept on conflict.
func (r *notificationRepository) UpsertUnread(ctx context.Context, n *domain.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, product_id, message, type, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (product_id, type) WHERE NOT is_read
		DO UPDATE SET message = EXCLUDED.message
		RETURNING id, created_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowContext(
		ctx,
		query,
		n.ID,
		n.ProductID,
		n.Message,
		string(n.Type),
		n.CreatedAt,
	).Scan(&n.ID, &n.CreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert notification: %w", err)
	}

	n.Read = false
	return inserted, nil
}

// ResolveUnread marks the matching unread notification as read
func (r *notificationRepository) ResolveUnread(ctx context.Context, productID uuid.UUID, notificationType domain.NotificationType) (bool, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE product_id = $1 AND type = $2 AND NOT is_read
	`

	result, err := r.db.ExecContext(ctx, query, productID, string(notificationType))
	if err != nil {
		return false, fmt.Errorf("failed to resolve notification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// FindAll returns every notification, newest first
func (r *notificationRepository) FindAll(ctx context.Context) ([]*domain.Notification, error) {
	query := `
		SELECT id, product_id, message, type, is_read, created_at
		FROM notifications
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n := &domain.Notification{}
		var notificationType string
		err := rows.Scan(
			&n.ID,
			&n.ProductID,
			&n.Message,
			&notificationType,
			&n.Read,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = domain.NotificationType(notificationType)
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// CountUnread returns the number of unread notifications
func (r *notificationRepository) CountUnread(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE NOT is_read`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead sets the read flag. Marking a read notification again succeeds.
func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}
