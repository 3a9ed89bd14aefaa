package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// LowStockThreshold is the quantity at or below which a product is low on stock
	LowStockThreshold = 5
	// ExpiryWarningDays is how far ahead an expiry date raises a warning
	ExpiryWarningDays = 7

	dateLayout = "2006-01-02"
)

// ScanReport counts what a single scan changed
type ScanReport struct {
	Scanned   int `json:"scanned"`
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
	Resolved  int `json:"resolved"`
}

// AlertService derives notifications from current product state
type AlertService interface {
	Scan(ctx context.Context, now time.Time) (ScanReport, error)
	List(ctx context.Context) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, now time.Time) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

type alertService struct {
	productRepo      repository.ProductRepository
	notificationRepo repository.NotificationRepository
	logger           *zap.Logger
}

// NewAlertService creates a new instance of AlertService
func NewAlertService(
	productRepo repository.ProductRepository,
	notificationRepo repository.NotificationRepository,
	logger *zap.Logger,
) AlertService {
	return &alertService{
		productRepo:      productRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// Scan walks every product once. A product has at most one unread
// notification per type no matter how often Scan runs.
func (s *alertService) Scan(ctx context.Context, now time.Time) (ScanReport, error) {
	var report ScanReport

	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load products: %w", err)
	}

	today := dateOf(now)
	warnBefore := today.AddDate(0, 0, ExpiryWarningDays)

	for _, p := range products {
		report.Scanned++

		if p.Quantity <= LowStockThreshold {
			msg := fmt.Sprintf("Low Stock Alert: %s has only %d left.", p.Name, p.Quantity)
			if err := s.raise(ctx, &report, p.ID, domain.NotificationLowStock, msg, now); err != nil {
				return report, err
			}
		} else {
			resolved, err := s.notificationRepo.ResolveUnread(ctx, p.ID, domain.NotificationLowStock)
			if err != nil {
				return report, fmt.Errorf("failed to resolve low stock alert: %w", err)
			}
			if resolved {
				report.Resolved++
			}
		}

		if p.ExpiryDate == nil {
			continue
		}
		expiry := dateOf(*p.ExpiryDate)
		switch {
		case expiry.Before(today):
			msg := fmt.Sprintf("EXPIRED: %s expired on %s", p.Name, expiry.Format(dateLayout))
			if err := s.raise(ctx, &report, p.ID, domain.NotificationExpiryCritical, msg, now); err != nil {
				return report, err
			}
		case expiry.Before(warnBefore):
			msg := fmt.Sprintf("Expiring Soon: %s expires on %s", p.Name, expiry.Format(dateLayout))
			if err := s.raise(ctx, &report, p.ID, domain.NotificationExpiryWarning, msg, now); err != nil {
				return report, err
			}
		}
	}

	s.logger.Debug("Alert scan finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("created", report.Created),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("resolved", report.Resolved),
	)

	return report, nil
}

func (s *alertService) raise(ctx context.Context, report *ScanReport, productID uuid.UUID, t domain.NotificationType, msg string, now time.Time) error {
	n := &domain.Notification{
		ID:        uuid.New(),
		ProductID: productID,
		Message:   msg,
		Type:      t,
		CreatedAt: now,
	}
	inserted, err := s.notificationRepo.UpsertUnread(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to raise %s alert: %w", t, err)
	}
	if inserted {
		report.Created++
	} else {
		report.Refreshed++
	}
	return nil
}

// List returns all notifications, newest first
func (s *alertService) List(ctx context.Context) ([]*domain.Notification, error) {
	notifications, err := s.notificationRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount refreshes alerts before counting
func (s *alertService) UnreadCount(ctx context.Context, now time.Time) (int, error) {
	if _, err := s.Scan(ctx, now); err != nil {
		return 0, err
	}
	count, err := s.notificationRepo.CountUnread(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *alertService) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.notificationRepo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// dateOf truncates t to its calendar date in UTC
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
