package transport

import (
	"errors"
	"net/http"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddToCartRequest is the payload for adding a product to the cart
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=1000000"`
}

// CartLineView is a cart line joined with the current catalog entry
type CartLineView struct {
	ProductID uuid.UUID        `json:"product_id"`
	Name      string           `json:"name,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  int              `json:"quantity"`
	InStock   int              `json:"in_stock"`
	Available bool             `json:"available"`
	AddedAt   time.Time        `json:"added_at"`
}

// CartView is the cart as returned to clients
type CartView struct {
	Items []CartLineView  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// CartHandler handles the caller's cart and checkout
type CartHandler struct {
	cartService    service.CartService
	productService service.ProductService
	logger         *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, productService service.ProductService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService:    cartService,
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers cart routes for any authenticated caller
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/user", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddItem)
		r.Delete("/cart/{productId}", h.RemoveItem)
		r.Post("/checkout", h.Checkout)
	})
}

// GetCart returns the caller's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)

	cart, err := h.cartService.GetCart(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load cart")
		return
	}

	h.respondCart(w, r, http.StatusOK, cart)
}

// AddItem adds quantity of a product to the caller's cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	identity, _ := identityFrom(r)

	cart, err := h.cartService.AddItem(r.Context(), identity.UserID, uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to add item to cart")
		return
	}

	h.respondCart(w, r, http.StatusOK, cart)
}

// RemoveItem drops a product line from the caller's cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productId")
	if !ok {
		return
	}
	identity, _ := identityFrom(r)

	cart, err := h.cartService.RemoveItem(r.Context(), identity.UserID, productID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to remove item from cart")
		return
	}

	h.respondCart(w, r, http.StatusOK, cart)
}

// Checkout sells the caller's cart
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r)
	logger := middleware.RequestLogger(h.logger, r)

	result, err := h.cartService.Checkout(r.Context(), identity.UserID, identity.Actor())
	if err != nil {
		var partial *service.PartialCheckoutError
		if errors.As(err, &partial) {
			logger.Warn("Checkout partially committed",
				zap.Int("committed", len(partial.Result.Committed)),
				zap.Int("failed", len(partial.Result.Failed)),
				zap.Error(partial.Cause),
			)
		}
		respondServiceError(w, logger, err, "checkout failed")
		return
	}

	logger.Info("Checkout completed", zap.Int("lines", len(result.Committed)))
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *domain.Cart) {
	view := CartView{Items: make([]CartLineView, 0, len(cart.Items)), Total: decimal.Zero}

	for _, item := range cart.Items {
		line := CartLineView{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: item.AddedAt}

		product, err := h.productService.Get(r.Context(), item.ProductID)
		switch {
		case err == nil:
			price := product.Price
			line.Name = product.Name
			line.Price = &price
			line.InStock = product.Quantity
			line.Available = product.Quantity >= item.Quantity
			view.Total = view.Total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		case errors.Is(err, service.ErrProductNotFound):
			// product deleted after it was added; the line stays until checkout reports it
		default:
			respondServiceError(w, h.logger, err, "failed to load cart")
			return
		}

		view.Items = append(view.Items, line)
	}

	middleware.RespondWithJSON(w, status, view)
}
