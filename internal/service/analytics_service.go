package service

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
)

// TopSellingLimit is the size of the top-selling list
const TopSellingLimit = 5

// Period selects the time window of an analytics query
type Period string

const (
	PeriodAll     Period = "all"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod maps a query value to a Period. Empty means def.
func ParsePeriod(value string, def Period) (Period, error) {
	if value == "" {
		return def, nil
	}
	switch p := Period(value); p {
	case PeriodAll, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
}

// TrendPoint is the revenue of one bucket in a trend series
type TrendPoint struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	Revenue decimal.Decimal `json:"revenue"`
}

// AnalyticsService aggregates the sales ledger. It never writes.
type AnalyticsService interface {
	Summary(ctx context.Context, now time.Time) (*domain.SalesSummary, error)
	TopSelling(ctx context.Context, period Period, now time.Time) ([]domain.ProductSales, error)
	Trends(ctx context.Context, period Period, now time.Time) ([]TrendPoint, error)
}

type analyticsService struct {
	transactionRepo repository.TransactionRepository
	productRepo     repository.ProductRepository
}

// NewAnalyticsService creates a new instance of AnalyticsService
func NewAnalyticsService(
	transactionRepo repository.TransactionRepository,
	productRepo repository.ProductRepository,
) AnalyticsService {
	return &analyticsService{
		transactionRepo: transactionRepo,
		productRepo:     productRepo,
	}
}

func (s *analyticsService) Summary(ctx context.Context, now time.Time) (*domain.SalesSummary, error) {
	today := startOfDay(now)
	month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	end := endOfDay(now)

	ordersToday, revenueToday, err := s.transactionRepo.SalesStats(ctx, today, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily sales: %w", err)
	}
	ordersMonth, revenueMonth, err := s.transactionRepo.SalesStats(ctx, month, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly sales: %w", err)
	}

	return &domain.SalesSummary{
		OrdersToday:  ordersToday,
		OrdersMonth:  ordersMonth,
		RevenueToday: revenueToday,
		RevenueMonth: revenueMonth,
	}, nil
}

// TopSelling ranks products by sold quantity over period. When fewer than
// TopSellingLimit products sold, the list is padded with other catalog
// products showing a zero count.
func (s *analyticsService) TopSelling(ctx context.Context, period Period, now time.Time) ([]domain.ProductSales, error) {
	var from *time.Time
	switch period {
	case PeriodAll:
	case PeriodDaily:
		t := startOfDay(now)
		from = &t
	case PeriodWeekly:
		t := startOfDay(now).AddDate(0, 0, -7)
		from = &t
	case PeriodMonthly:
		d := startOfDay(now)
		t := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
		from = &t
	default:
		return nil, ErrInvalidPeriod
	}

	// Ranked rows of deleted products are skipped, so ask for a few extra
	ranked, err := s.transactionRepo.TopSelling(ctx, from, endOfDay(now), TopSellingLimit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID.String()] = p
	}

	result := make([]domain.ProductSales, 0, TopSellingLimit)
	seen := make(map[string]bool, TopSellingLimit)
	for _, r := range ranked {
		if len(result) == TopSellingLimit {
			break
		}
		p, ok := byID[r.ProductID.String()]
		if !ok {
			continue
		}
		result = append(result, domain.ProductSales{Product: *p, SoldCount: r.Quantity})
		seen[p.ID.String()] = true
	}

	for _, p := range products {
		if len(result) == TopSellingLimit {
			break
		}
		if seen[p.ID.String()] {
			continue
		}
		result = append(result, domain.ProductSales{Product: *p})
	}

	return result, nil
}

// Trends returns revenue per bucket, oldest first: the last 7 days, the last
// 5 weeks starting Monday, or the last 6 calendar months
func (s *analyticsService) Trends(ctx context.Context, period Period, now time.Time) ([]TrendPoint, error) {
	type bucket struct {
		label      string
		start, end time.Time
	}

	today := startOfDay(now)
	var buckets []bucket
	switch period {
	case PeriodDaily:
		for i := 6; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			buckets = append(buckets, bucket{day.Format("02 Jan"), day, endOfDay(day)})
		}
	case PeriodWeekly:
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		for i := 4; i >= 0; i-- {
			start := monday.AddDate(0, 0, -7*i)
			buckets = append(buckets, bucket{start.Format("02 Jan"), start, endOfDay(start.AddDate(0, 0, 6))})
		}
	case PeriodMonthly:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		for i := 5; i >= 0; i-- {
			start := first.AddDate(0, -i, 0)
			buckets = append(buckets, bucket{start.Format("Jan 2006"), start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)})
		}
	default:
		return nil, ErrInvalidPeriod
	}

	points := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		_, revenue, err := s.transactionRepo.SalesStats(ctx, b.start, b.end)
		if err != nil {
			return nil, fmt.Errorf("failed to load sales for %s: %w", b.label, err)
		}
		points = append(points, TrendPoint{Label: b.label, Start: b.start, Revenue: revenue})
	}
	return points, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
