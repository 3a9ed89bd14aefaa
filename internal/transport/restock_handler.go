package transport

import (
	"errors"
	"fmt"
	"net/http"

	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreatePurchaseOrderRequest is the payload for sending a purchase order.
// Either product_id or product_name must be given.
type CreatePurchaseOrderRequest struct {
	VendorEmail string `json:"vendor_email" validate:"required,email"`
	ProductID   string `json:"product_id" validate:"omitempty,uuid"`
	ProductName string `json:"product_name" validate:"required_without=ProductID,max=255"`
	Quantity    int    `json:"quantity" validate:"required,gt=0,lte=1000000"`
}

// RestockHandler handles forecasting and purchase orders
type RestockHandler struct {
	orderService service.PurchaseOrderService
	logger       *zap.Logger
}

// NewRestockHandler creates a new RestockHandler
func NewRestockHandler(orderService service.PurchaseOrderService, logger *zap.Logger) *RestockHandler {
	return &RestockHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers forecast and restock routes. The forecast is
// readable by staff; purchase orders are admin only.
func (h *RestockHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.With(middleware.RequireStaff(h.logger)).Get("/api/forecast", h.Forecast)

		r.Route("/api/restock", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/suggestions", h.Suggestions)
			r.Get("/history", h.History)
			r.Post("/create-po", h.CreatePurchaseOrder)
		})
	})
}

// Forecast returns restock advice for every product
func (h *RestockHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	advice, err := h.orderService.Forecast(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to build forecast")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, advice)
}

// Suggestions returns only the products that need restocking
func (h *RestockHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	advice, err := h.orderService.Suggestions(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to build restock suggestions")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, advice)
}

// History lists purchase orders, newest first
func (h *RestockHandler) History(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list purchase orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// CreatePurchaseOrder stores a purchase order and emails the vendor. When
// the email fails the stored order is still returned with a 502.
func (h *RestockHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseOrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	input := service.CreatePurchaseOrderInput{
		VendorEmail: req.VendorEmail,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
	}
	if req.ProductID != "" {
		id := uuid.MustParse(req.ProductID)
		input.ProductID = &id
	}

	order, err := h.orderService.CreateAndSend(r.Context(), input, actor)
	if err != nil {
		var delivery *service.EmailDeliveryError
		if errors.As(err, &delivery) && order != nil {
			middleware.RequestLogger(h.logger, r).Warn("Purchase order stored but email failed",
				zap.String("po_id", order.ID.String()),
				zap.Error(delivery.Cause),
			)
			middleware.RespondWithErrorDetails(w, http.StatusBadGateway,
				fmt.Sprintf("purchase order created but email to %s failed", delivery.Recipient),
				map[string]any{"purchase_order": order},
			)
			return
		}
		respondServiceError(w, h.logger, err, "failed to create purchase order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}
