package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultHistoryLimit is the number of ledger entries returned when no limit is given
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// StockService is the only path that changes product quantities. Every
// successful change appends exactly one transaction.
type StockService interface {
	AdjustStock(ctx context.Context, productID uuid.UUID, quantity int, txType domain.TransactionType, actor string) (*domain.Product, error)
	StockIn(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error)
	StockOut(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error)
	History(ctx context.Context, limit int) ([]*domain.Transaction, error)
}

type stockService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	logger          *zap.Logger
	now             func() time.Time
}

// NewStockService creates a new instance of StockService
func NewStockService(
	productRepo repository.ProductRepository,
	transactionRepo repository.TransactionRepository,
	logger *zap.Logger,
) StockService {
	return &stockService{
		productRepo:     productRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// AdjustStock validates the request before touching the store, so a rejected
// call never leaves a ledger entry behind
func (s *stockService) AdjustStock(ctx context.Context, productID uuid.UUID, quantity int, txType domain.TransactionType, actor string) (*domain.Product, error) {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	if !txType.Valid() {
		return nil, ErrInvalidTransactionType
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrMissingActor
	}

	product, entry, err := s.productRepo.AdjustStock(ctx, repository.StockChange{
		ProductID: productID,
		Type:      txType,
		Quantity:  quantity,
		HandledBy: actor,
		At:        s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return nil, ErrProductNotFound
		case errors.Is(err, repository.ErrInsufficientStock):
			shortage := &InsufficientStockError{ProductID: productID, Requested: quantity}
			if product != nil {
				shortage.ProductName = product.Name
				shortage.Available = product.Quantity
			}
			return nil, shortage
		case errors.Is(err, repository.ErrQuantityOutOfRange):
			return nil, ErrStockLimitExceeded
		default:
			return nil, fmt.Errorf("failed to adjust stock: %w", err)
		}
	}

	s.logger.Info("Stock adjusted",
		zap.String("product_id", product.ID.String()),
		zap.String("type", string(entry.Type)),
		zap.Int("quantity", entry.Quantity),
		zap.Int("new_quantity", product.Quantity),
		zap.String("handled_by", entry.HandledBy),
	)

	return product, nil
}

// StockIn adds quantity units to a product
func (s *stockService) StockIn(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error) {
	return s.AdjustStock(ctx, productID, quantity, domain.TransactionStockIn, actor)
}

// StockOut removes quantity units from a product
func (s *stockService) StockOut(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error) {
	return s.AdjustStock(ctx, productID, quantity, domain.TransactionStockOut, actor)
}

// History returns the most recent ledger entries, newest first
func (s *stockService) History(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries, err := s.transactionRepo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}
