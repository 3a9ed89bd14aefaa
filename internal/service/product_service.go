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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductInput holds the attributes of a new product. Quantity is the
// opening stock.
type CreateProductInput struct {
	Name        string
	Description string
	Category    string
	ImageURL    string
	Quantity    int
	Price       decimal.Decimal
	ExpiryDate  *time.Time
}

// ProductService manages the product catalog
type ProductService interface {
	Create(ctx context.Context, input CreateProductInput, actor string) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *productService) Create(ctx context.Context, input CreateProductInput, actor string) (*domain.Product, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrMissingActor
	}
	if input.Quantity < 0 || input.Quantity > domain.MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	name := strings.TrimSpace(input.Name)
	if err := validateAttributes(name, input.Price); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
		Quantity:    input.Quantity,
		Price:       input.Price,
		ExpiryDate:  input.ExpiryDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	opening, err := s.productRepo.Create(ctx, product, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	fields := []zap.Field{
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.String("created_by", actor),
	}
	if opening != nil {
		fields = append(fields, zap.Int("opening_stock", opening.Quantity))
	}
	s.logger.Info("Product created", fields...)

	return product, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Update replaces the catalog attributes. Stock stays as recorded by the ledger.
func (s *productService) Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error) {
	update.Name = strings.TrimSpace(update.Name)
	if err := validateAttributes(update.Name, update.Price); err != nil {
		return nil, err
	}

	product, err := s.productRepo.Update(ctx, id, update, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

func validateAttributes(name string, price decimal.Decimal) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	return nil
}
