package transport

import (
	"net/http"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload for creating or replacing a product.
// Price accepts a JSON string or number.
type ProductRequest struct {
	Name        string           `json:"name" validate:"notblank,max=255"`
	Description string           `json:"description" validate:"max=2000"`
	Category    string           `json:"category" validate:"max=100"`
	ImageURL    string           `json:"image_url" validate:"omitempty,url"`
	Quantity    int              `json:"quantity" validate:"gte=0,lte=1000000"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	ExpiryDate  string           `json:"expiry_date" validate:"omitempty,date"`
}

func (r ProductRequest) expiry() *time.Time {
	if r.ExpiryDate == "" {
		return nil
	}
	// validated by the "date" tag
	t, _ := time.Parse(middleware.DateLayout, r.ExpiryDate)
	return &t
}

// ProductHandler handles catalog requests
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers catalog routes. Reads are open to every
// authenticated caller, writes need a staff role.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStaff(h.logger))
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns every product ordered by name
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Get returns a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create adds a product with its opening stock
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	product, err := h.productService.Create(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    req.ImageURL,
		Quantity:    req.Quantity,
		Price:       *req.Price,
		ExpiryDate:  req.expiry(),
	}, actor)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces the editable attributes of a product. Quantity in the
// payload is ignored; stock moves only through the stock endpoints.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.Update(r.Context(), id, domain.ProductUpdate{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    req.ImageURL,
		Price:       *req.Price,
		ExpiryDate:  req.expiry(),
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product. Its ledger entries are kept.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	actor, _ := middleware.GetActor(r.Context())
	h.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("actor", actor),
	)
	w.WriteHeader(http.StatusNoContent)
}
