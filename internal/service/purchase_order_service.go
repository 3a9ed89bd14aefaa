package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/forecast"
	"stockledger/internal/mailer"
	"stockledger/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tokenBytes            = 32
	tokenAttempts         = 3
	defaultForecastFanOut = 4
)

// CreatePurchaseOrderInput describes a restock request to a vendor.
// ProductName may be omitted when ProductID is set.
type CreatePurchaseOrderInput struct {
	VendorEmail string
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
}

// ConfirmResult is the outcome of a vendor confirmation
type ConfirmResult struct {
	Order            *domain.PurchaseOrder
	AlreadyConfirmed bool
}

// PurchaseOrderService runs the restock workflow: forecast, order, vendor confirmation
type PurchaseOrderService interface {
	CreateAndSend(ctx context.Context, input CreatePurchaseOrderInput, actor string) (*domain.PurchaseOrder, error)
	Confirm(ctx context.Context, token string) (*ConfirmResult, error)
	List(ctx context.Context) ([]*domain.PurchaseOrder, error)
	Forecast(ctx context.Context) ([]domain.RestockAdvice, error)
	Suggestions(ctx context.Context) ([]domain.RestockAdvice, error)
}

// PurchaseOrderConfig holds workflow settings
type PurchaseOrderConfig struct {
	// PublicBaseURL prefixes the confirmation link sent to vendors
	PublicBaseURL string
	// ForecastConcurrency bounds in-flight forecast calls
	ForecastConcurrency int
}

type purchaseOrderService struct {
	orderRepo   repository.PurchaseOrderRepository
	productRepo repository.ProductRepository
	sender      mailer.Sender
	forecaster  forecast.Provider
	cfg         PurchaseOrderConfig
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	newToken    func() (string, error)
}

// NewPurchaseOrderService creates a new instance of PurchaseOrderService
func NewPurchaseOrderService(
	orderRepo repository.PurchaseOrderRepository,
	productRepo repository.ProductRepository,
	sender mailer.Sender,
	forecaster forecast.Provider,
	cfg PurchaseOrderConfig,
	logger *zap.Logger,
) PurchaseOrderService {
	if cfg.ForecastConcurrency <= 0 {
		cfg.ForecastConcurrency = defaultForecastFanOut
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return &purchaseOrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		sender:      sender,
		forecaster:  forecaster,
		cfg:         cfg,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
		newToken:    generateToken,
	}
}

// CreateAndSend stores a SENT order and emails the vendor a one-time
// confirmation link. The order is kept when the email fails; the returned
// *EmailDeliveryError then accompanies it.
func (s *purchaseOrderService) CreateAndSend(ctx context.Context, input CreatePurchaseOrderInput, actor string) (*domain.PurchaseOrder, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrMissingActor
	}
	if input.Quantity <= 0 || input.Quantity > domain.MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	email := strings.TrimSpace(input.VendorEmail)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidVendorEmail
	}

	name := strings.TrimSpace(input.ProductName)
	if input.ProductID != nil {
		product, err := s.productRepo.FindByID(ctx, *input.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to find product: %w", err)
		}
		if name == "" {
			name = product.Name
		}
	}
	if name == "" {
		return nil, ErrInvalidProduct
	}

	order := &domain.PurchaseOrder{
		VendorEmail:     email,
		ProductID:       input.ProductID,
		ProductName:     name,
		QuantityToOrder: input.Quantity,
		Status:          domain.PurchaseOrderSent,
		CreatedBy:       actor,
		CreatedAt:       s.now(),
	}

	var token string
	for attempt := 1; ; attempt++ {
		t, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
		}
		order.ID = uuid.New()
		order.ConfirmationToken = &t

		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			token = t
			break
		}
		if !errors.Is(err, repository.ErrDuplicateToken) || attempt == tokenAttempts {
			return nil, fmt.Errorf("failed to create purchase order: %w", err)
		}
	}

	s.logger.Info("Purchase order created",
		zap.String("order_id", order.ID.String()),
		zap.String("product", order.ProductName),
		zap.Int("quantity", order.QuantityToOrder),
		zap.String("created_by", actor),
	)

	link := s.cfg.PublicBaseURL + "/public/po/confirm/" + token
	subject := "URGENT: Purchase Order Confirmation - " + order.ProductName
	body := fmt.Sprintf(
		"Dear Vendor,\n\n"+
			"We require the following stock immediately:\n"+
			"Product: %s\n"+
			"Quantity: %d\n\n"+
			"To confirm this order, please click the link below:\n"+
			"%s\n\n"+
			"Thank you,\nInventory System",
		order.ProductName, order.QuantityToOrder, link,
	)

	if err := s.sender.Send(ctx, order.VendorEmail, subject, body); err != nil {
		s.logger.Error("Failed to email purchase order",
			zap.String("order_id", order.ID.String()),
			zap.String("vendor_email", order.VendorEmail),
			zap.Error(err),
		)
		return order, &EmailDeliveryError{Recipient: order.VendorEmail, Cause: err}
	}

	return order, nil
}

// Confirm consumes a confirmation token. Every failure looks the same to the
// caller so the endpoint cannot be used to probe for tokens.
func (s *purchaseOrderService) Confirm(ctx context.Context, token string) (*ConfirmResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	order, err := s.orderRepo.ConfirmByToken(ctx, token, s.now())
	if err == nil {
		s.logger.Info("Purchase order confirmed",
			zap.String("order_id", order.ID.String()),
			zap.String("token_fingerprint", TokenFingerprint(token)),
		)
		return &ConfirmResult{Order: order}, nil
	}
	if !errors.Is(err, repository.ErrPurchaseOrderNotFound) {
		return nil, fmt.Errorf("failed to confirm purchase order: %w", err)
	}

	existing, err := s.orderRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrPurchaseOrderNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up purchase order: %w", err)
	}
	if existing.Status == domain.PurchaseOrderConfirmed {
		return &ConfirmResult{Order: existing, AlreadyConfirmed: true}, nil
	}
	return nil, ErrInvalidToken
}

// List returns all purchase orders, newest first
func (s *purchaseOrderService) List(ctx context.Context) ([]*domain.PurchaseOrder, error) {
	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return orders, nil
}

// Forecast classifies every product against its predicted demand. A failed
// prediction marks only that product.
func (s *purchaseOrderService) Forecast(ctx context.Context) ([]domain.RestockAdvice, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	advice := make([]domain.RestockAdvice, len(products))

	var g errgroup.Group
	g.SetLimit(s.cfg.ForecastConcurrency)
	for i, p := range products {
		g.Go(func() error {
			demand, err := s.forecaster.ForecastDemand(ctx, p.ID)
			if err != nil {
				s.logger.Warn("Forecast failed",
					zap.String("product_id", p.ID.String()),
					zap.Error(err),
				)
			}
			advice[i] = classify(p, demand, err)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return advice, nil
}

// Suggestions returns only the products at risk of running out
func (s *purchaseOrderService) Suggestions(ctx context.Context) ([]domain.RestockAdvice, error) {
	all, err := s.Forecast(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := []domain.RestockAdvice{}
	for _, a := range all {
		if a.NeedsRestock() {
			suggestions = append(suggestions, a)
		}
	}
	return suggestions, nil
}

// classify ranks STOCKOUT first since it does not depend on the forecast
func classify(p *domain.Product, demand int, forecastErr error) domain.RestockAdvice {
	a := domain.RestockAdvice{
		ProductID:    p.ID,
		ProductName:  p.Name,
		CurrentStock: p.Quantity,
	}
	if forecastErr != nil {
		a.ForecastFailed = true
	} else {
		a.ForecastDemand = demand
	}

	switch {
	case p.Quantity == 0:
		a.Action = domain.RestockStockout
	case forecastErr != nil:
		a.Action = domain.RestockForecastFailed
	case p.Quantity < demand:
		a.Action = domain.RestockWarning
	default:
		a.Action = domain.RestockOK
	}
	return a
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenFingerprint identifies a token in logs without revealing it
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
