package transport

import (
	"net/http"

	"stockledger/internal/domain"
	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
)

// StockChangeRequest is the payload of a manual stock movement
type StockChangeRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=1000000"`
}

// StockHandler handles manual stock movements and the ledger history
type StockHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService service.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// RegisterRoutes registers stock routes, all restricted to staff
func (h *StockHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/stock", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireStaff(h.logger))
		r.Post("/in", h.StockIn)
		r.Post("/out", h.StockOut)
		r.Get("/history", h.History)
	})
}

// StockIn records a delivery
func (h *StockHandler) StockIn(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, domain.TransactionStockIn)
}

// StockOut records stock leaving the warehouse outside of a sale
func (h *StockHandler) StockOut(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, domain.TransactionStockOut)
}

func (h *StockHandler) adjust(w http.ResponseWriter, r *http.Request, txType domain.TransactionType) {
	var req StockChangeRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	actor, _ := middleware.GetActor(r.Context())

	product, err := h.stockService.AdjustStock(r.Context(), uuid.MustParse(req.ProductID), req.Quantity, txType, actor)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// History returns the most recent ledger entries, newest first
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 {
		middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	history, err := h.stockService.History(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load stock history")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, history)
}
