package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/souqflowapp/souqflow/internal/bulk"
	"github.com/souqflowapp/souqflow/internal/catalog"
	"github.com/souqflowapp/souqflow/internal/currency"
	"github.com/souqflowapp/souqflow/internal/db"
	"github.com/souqflowapp/souqflow/internal/pricing"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

// respondError maps domain errors to a machine-readable kind and HTTP status.
// Internal failures are logged with detail but surfaced generically.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classifyError(err)

	message := err.Error()
	if kind == "internal" {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		message = "internal error"
	}

	h.respondJSON(w, r, status, errorBody{Error: errorDetail{
		Kind:    kind,
		Message: message,
	}})
}

func classifyError(err error) (kind string, status int) {
	switch {
	case errors.Is(err, currency.ErrUnknownCurrency):
		return "unknown_currency", http.StatusBadRequest
	case errors.Is(err, currency.ErrInvalidAmount),
		errors.Is(err, currency.ErrInvalidRate),
		errors.Is(err, pricing.ErrInvalidArgument),
		errors.Is(err, bulk.ErrInvalidQuantity):
		return "invalid_argument", http.StatusBadRequest
	case errors.Is(err, catalog.ErrProductNotFound):
		return "product_not_found", http.StatusNotFound
	case errors.Is(err, bulk.ErrNoApplicableTier):
		return "no_applicable_tier", http.StatusBadRequest
	case errors.Is(err, bulk.ErrTierCapacityExceeded):
		return "tier_capacity_exceeded", http.StatusConflict
	case errors.Is(err, bulk.ErrTierExpired):
		return "tier_expired", http.StatusConflict
	case errors.Is(err, db.ErrInvalidStatusTransition):
		return "invalid_status_transition", http.StatusConflict
	case errors.Is(err, db.ErrBulkOrderNotFound),
		errors.Is(err, db.ErrTierNotFound),
		errors.Is(err, db.ErrRateNotFound):
		return "not_found", http.StatusNotFound
	default:
		return "internal", http.StatusInternalServerError
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
