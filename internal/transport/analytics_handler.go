package transport

import (
	"net/http"
	"time"

	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AnalyticsHandler serves sales reports to staff
type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	logger           *zap.Logger
	now              func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
		now:              time.Now,
	}
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireStaff(h.logger))
		r.Get("/summary", h.Summary)
		r.Get("/top-selling", h.TopSelling)
		r.Get("/trends", h.Trends)
	})
}

// Summary returns today's and this month's orders and revenue
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analyticsService.Summary(r.Context(), h.now())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to build sales summary")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// TopSelling returns the best selling products for ?period=
func (h *AnalyticsHandler) TopSelling(w http.ResponseWriter, r *http.Request) {
	period, err := service.ParsePeriod(r.URL.Query().Get("period"), service.PeriodAll)
	if err != nil {
		respondServiceError(w, h.logger, err, "invalid period")
		return
	}

	top, err := h.analyticsService.TopSelling(r.Context(), period, h.now())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load top selling products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, top)
}

// Trends returns revenue buckets for ?period=, monthly by default
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	period, err := service.ParsePeriod(r.URL.Query().Get("period"), service.PeriodMonthly)
	if err != nil {
		respondServiceError(w, h.logger, err, "invalid period")
		return
	}

	points, err := h.analyticsService.Trends(r.Context(), period, h.now())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load sales trends")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, points)
}
