package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommittedLine is a cart line that was sold during checkout
type CommittedLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	RemainingStock int       `json:"remaining_stock"`
}

// FailedLine is a cart line that was not sold during checkout
type FailedLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// CheckoutResult lists which cart lines were committed and which were not
type CheckoutResult struct {
	Committed []CommittedLine `json:"committed"`
	Failed    []FailedLine    `json:"failed"`
}

// CartService coordinates a user's cart and its checkout against the stock ledger
type CartService interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*domain.Cart, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	Checkout(ctx context.Context, userID uuid.UUID, actor string) (*CheckoutResult, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	stock       StockService
	logger      *zap.Logger
	checkouts   *keyedMutex
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	stock StockService,
	logger *zap.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		stock:       stock,
		logger:      logger,
		checkouts:   newKeyedMutex(),
	}
}

// AddItem checks availability without reserving stock, then merges the
// quantity into the cart
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	inCart := 0
	if line, ok := cart.Find(productID); ok {
		inCart = line.Quantity
	}

	if product.Quantity < inCart+quantity {
		return nil, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   inCart + quantity,
			Available:   product.Quantity,
		}
	}

	item := domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: time.Now()}
	if err := s.cartRepo.AddOrMerge(ctx, userID, item); err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem deletes the line for productID from the cart
func (s *cartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*domain.Cart, error) {
	if err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to remove item from cart: %w", err)
	}

	return s.GetCart(ctx, userID)
}

// GetCart returns the cart lines unchanged
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return cart, nil
}

// Checkout validates every line, then sells them one by one through the
// stock ledger. Each sale re-checks availability at decrement time. When a
// sale fails the remaining lines are not attempted and lines already sold are
// kept; the error then carries the CheckoutResult.
func (s *cartService) Checkout(ctx context.Context, userID uuid.UUID, actor string) (*CheckoutResult, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, ErrMissingActor
	}

	unlock := s.checkouts.lock(userID)
	defer unlock()

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Validate phase
	for _, line := range cart.Items {
		product, err := s.findProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Quantity < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Quantity,
			}
		}
	}

	// Commit phase
	result := &CheckoutResult{Committed: []CommittedLine{}, Failed: []FailedLine{}}
	var cause error
	for i, line := range cart.Items {
		product, err := s.stock.AdjustStock(ctx, line.ProductID, line.Quantity, domain.TransactionSale, actor)
		if err != nil {
			cause = err
			for _, rest := range cart.Items[i:] {
				result.Failed = append(result.Failed, FailedLine{
					ProductID: rest.ProductID,
					Quantity:  rest.Quantity,
					Reason:    failureReason(rest.ProductID, line.ProductID, err),
				})
			}
			break
		}
		result.Committed = append(result.Committed, CommittedLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			RemainingStock: product.Quantity,
		})
	}

	if cause == nil {
		if err := s.cartRepo.Clear(ctx, userID); err != nil {
			return result, fmt.Errorf("checkout committed but cart was not cleared: %w", err)
		}
		s.logger.Info("Checkout completed",
			zap.String("user_id", userID.String()),
			zap.Int("lines", len(result.Committed)),
		)
		return result, nil
	}

	if len(result.Committed) == 0 {
		return nil, cause
	}

	committed := make([]uuid.UUID, len(result.Committed))
	for i, line := range result.Committed {
		committed[i] = line.ProductID
	}
	var cleanupErr error
	if err := s.cartRepo.RemoveProducts(ctx, userID, committed); err != nil {
		s.logger.Error("Failed to drop committed lines from cart",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		cleanupErr = fmt.Errorf("failed to remove committed lines from cart: %w", err)
	}

	s.logger.Warn("Checkout partially committed",
		zap.String("user_id", userID.String()),
		zap.Int("committed", len(result.Committed)),
		zap.Int("failed", len(result.Failed)),
		zap.Error(cause),
	)

	return result, &PartialCheckoutError{Result: result, Cause: cause, CleanupErr: cleanupErr}
}

func (s *cartService) findProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

func failureReason(productID, failedID uuid.UUID, err error) string {
	if productID == failedID {
		return err.Error()
	}
	return "not processed: an earlier line failed"
}

// keyedMutex serializes checkouts of the same user within this process
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

type keyedLock struct {
	mu      sync.Mutex
	waiters int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*keyedLock)}
}

func (k *keyedMutex) lock(key uuid.UUID) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.waiters++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
