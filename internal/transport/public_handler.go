package transport

import (
	"errors"
	"fmt"
	"net/http"

	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PublicHandler serves the unauthenticated vendor confirmation link
type PublicHandler struct {
	orderService service.PurchaseOrderService
	logger       *zap.Logger
}

// NewPublicHandler creates a new PublicHandler
func NewPublicHandler(orderService service.PurchaseOrderService, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers the public routes behind their own rate limiter
func (h *PublicHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.Route("/public/po", func(r chi.Router) {
		r.Use(rateLimit)
		r.Get("/confirm/{token}", h.Confirm)
	})
}

// Confirm consumes a purchase order confirmation token. Vendors open this
// from an email, so success is answered in plain text.
func (h *PublicHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	audit := middleware.RequestLogger(h.logger, r).With(
		zap.String("token_fingerprint", service.TokenFingerprint(token)),
		zap.String("remote_addr", r.RemoteAddr),
	)

	result, err := h.orderService.Confirm(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			audit.Warn("Purchase order confirmation rejected")
		} else {
			audit.Error("Purchase order confirmation failed", zap.Error(err))
		}
		respondServiceError(w, h.logger, err, "failed to confirm purchase order")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if result.AlreadyConfirmed {
		audit.Info("Purchase order confirmation repeated", zap.String("po_id", result.Order.ID.String()))
		confirmedAt := ""
		if result.Order.ConfirmedAt != nil {
			confirmedAt = " on " + result.Order.ConfirmedAt.UTC().Format("2006-01-02 15:04 MST")
		}
		fmt.Fprintf(w, "Order %s already CONFIRMED%s\n", result.Order.ID, confirmedAt)
		return
	}

	audit.Info("Purchase order confirmation accepted", zap.String("po_id", result.Order.ID.String()))
	fmt.Fprintln(w, "Purchase Order Confirmed. Thank you for your prompt response!")
}
