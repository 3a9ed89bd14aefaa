package transport

import (
	"errors"
	"net/http"
	"strconv"

	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// decodeRequest decodes and validates the JSON body into v. It writes the
// 400 response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err), zap.String("path", r.URL.Path))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathUUID parses the named URL parameter, writing a 400 when it is not a UUID
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "invalid "+name, map[string]any{
			"validation_errors": []middleware.ValidationError{{Field: name, Message: "Must be a valid UUID"}},
		})
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// respondServiceError maps service errors onto the HTTP error envelope
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var shortage *service.InsufficientStockError
	var partial *service.PartialCheckoutError

	switch {
	case errors.As(err, &partial):
		details := map[string]any{
			"committed": partial.Result.Committed,
			"failed":    partial.Result.Failed,
			"cause":     partial.Cause.Error(),
		}
		if partial.CleanupErr != nil {
			logger.Error("Committed lines left in cart", zap.Error(partial.CleanupErr))
			details["cart_not_updated"] = true
		}
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "checkout partially completed", details)

	case errors.As(err, &shortage):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "insufficient stock", map[string]any{
			"product_id":   shortage.ProductID,
			"product_name": shortage.ProductName,
			"requested":    shortage.Requested,
			"available":    shortage.Available,
		})

	case errors.Is(err, service.ErrEmptyCart):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidTransactionType),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidVendorEmail),
		errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, service.ErrStockLimitExceeded):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrMissingActor):
		middleware.RespondWithError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, service.ErrPurchaseOrderNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusNotFound, service.ErrInvalidToken.Error())

	case errors.Is(err, service.ErrExternalService):
		logger.Warn("External service failure", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, err.Error())

	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// identityFrom returns the caller identity placed on the context by the auth
// middleware
func identityFrom(r *http.Request) (middleware.Identity, bool) {
	return middleware.GetIdentity(r.Context())
}
