package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/souqflowapp/souqflow/internal/bulk"
	"github.com/souqflowapp/souqflow/internal/pricing"
)

type setupBulkPricingRequest struct {
	Tiers []bulk.TierSpec `json:"tiers"`
}

func (h *Handlers) SetupBulkPricing(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var req setupBulkPricingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}

	tiers, err := h.bulk.SetupBulkPricing(r.Context(), productID, req.Tiers)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{
		"product_id": productID,
		"tiers":      tiers,
	})
}

func (h *Handlers) GetProductBulkPricing(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	result, err := h.bulk.GetProductBulkPricing(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, result)
}

type placeBulkOrderRequest struct {
	UserID   string `json:"user_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handlers) PlaceBulkOrder(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var req placeBulkOrderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}
	if req.UserID == "" {
		h.respondError(w, r, fmt.Errorf("%w: user_id is required", pricing.ErrInvalidArgument))
		return
	}

	order, err := h.bulk.PlaceBulkOrder(r.Context(), productID, req.UserID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, order)
}

func (h *Handlers) GetActiveBulkPricing(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.bulk.GetActiveBulkPricing(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{"tiers": tiers})
}

func (h *Handlers) GetHotDeals(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.bulk.GetHotDeals(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{"deals": tiers})
}

func (h *Handlers) GetExpiringDeals(w http.ResponseWriter, r *http.Request) {
	withinHours := 24
	if raw := r.URL.Query().Get("within_hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondError(w, r, fmt.Errorf("%w: within_hours must be a positive integer", pricing.ErrInvalidArgument))
			return
		}
		withinHours = parsed
	}

	tiers, err := h.bulk.GetExpiringDeals(r.Context(), time.Duration(withinHours)*time.Hour)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{"deals": tiers})
}

func (h *Handlers) UpdatePricingBasedOnVolume(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	update, err := h.bulk.UpdatePricingBasedOnVolume(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, update)
}

func (h *Handlers) ConfirmBulkOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromRequest(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	order, err := h.bulk.ConfirmBulkOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) CancelBulkOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromRequest(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	order, err := h.bulk.CancelBulkOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, order)
}

// GetExpiredPendingOrders supports the external reservation-expiry sweep.
func (h *Handlers) GetExpiredPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.bulk.ListExpiredPendingOrders(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{"orders": orders})
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["orderId"]
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: order id must be a uuid", pricing.ErrInvalidArgument)
	}
	return orderID, nil
}
