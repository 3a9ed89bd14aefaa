package transport

import (
	"net/http"
	"time"

	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UnreadCountResponse is returned by the unread-count endpoint
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// NotificationHandler exposes stock and expiry alerts to staff
type NotificationHandler struct {
	alertService service.AlertService
	logger       *zap.Logger
	now          func() time.Time
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(alertService service.AlertService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		alertService: alertService,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterRoutes registers notification routes, restricted to staff
func (h *NotificationHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireStaff(h.logger))
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Put("/{id}/read", h.MarkRead)
	})
}

// List returns all notifications, newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.alertService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list notifications")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, notifications)
}

// UnreadCount rescans the catalog and returns the number of unread alerts
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.alertService.UnreadCount(r.Context(), h.now())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to count notifications")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.alertService.MarkRead(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to mark notification as read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
