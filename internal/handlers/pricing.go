package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/souqflowapp/souqflow/internal/pricing"
)

type convertRequest struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
}

func (h *Handlers) ConvertPrice(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}

	conversion, err := h.ledger.Convert(r.Context(), req.Amount, req.From, req.To)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, conversion)
}

func (h *Handlers) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.ledger.ListRates(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{"rates": rates})
}

// RefreshRates triggers a provider refresh. The external task runner calls
// this on an interval; provider failure still returns 202 because rates
// simply stay stale.
func (h *Handlers) RefreshRates(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RefreshRates(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusAccepted, map[string]string{"status": "refreshed"})
}

func (h *Handlers) RecomputeVolatility(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RecomputeVolatility(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusAccepted, map[string]string{"status": "recomputed"})
}

type shippingRequest struct {
	Weight             float64 `json:"weight"`
	Dimensions         string  `json:"dimensions"`
	DestinationCountry string  `json:"destination_country"`
	Method             string  `json:"method"`
	OrderValue         float64 `json:"order_value"`
}

func (h *Handlers) CalculateShippingCost(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}
	if req.Method == "" {
		req.Method = "standard"
	}

	quote, err := h.shipping.Calculate(r.Context(), req.Weight,
		pricing.ParseDimensions(req.Dimensions), req.DestinationCountry,
		req.Method, req.OrderValue, time.Now().UTC())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, quote)
}

func (h *Handlers) GetAvailableShippingMethods(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		h.respondError(w, r, fmt.Errorf("%w: country query parameter is required", pricing.ErrInvalidArgument))
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]any{
		"country": country,
		"methods": h.shipping.AvailableMethods(country),
	})
}

type optimalPricingRequest struct {
	SourcePrice      float64  `json:"source_price"`
	SourceCurrency   string   `json:"source_currency"`
	Category         string   `json:"category"`
	TargetCountry    string   `json:"target_country"`
	TargetCurrency   string   `json:"target_currency"`
	Weight           float64  `json:"weight"`
	Dimensions       string   `json:"dimensions"`
	ShippingMethod   string   `json:"shipping_method"`
	CompetitivePrice *float64 `json:"competitive_price"`
	Quantity         int      `json:"quantity"`
}

func (req *optimalPricingRequest) toPriceRequest() pricing.PriceRequest {
	return pricing.PriceRequest{
		SourcePrice:      req.SourcePrice,
		SourceCurrency:   req.SourceCurrency,
		Category:         req.Category,
		TargetCountry:    req.TargetCountry,
		TargetCurrency:   req.TargetCurrency,
		Weight:           req.Weight,
		Dimensions:       pricing.ParseDimensions(req.Dimensions),
		ShippingMethod:   req.ShippingMethod,
		CompetitivePrice: req.CompetitivePrice,
	}
}

func (h *Handlers) CalculateOptimalPricing(w http.ResponseWriter, r *http.Request) {
	var req optimalPricingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}

	breakdown, err := h.calculator.PriceProduct(r.Context(), req.toPriceRequest())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, breakdown)
}

// GetPricingBreakdown is the quantity-aware variant of optimal pricing.
func (h *Handlers) GetPricingBreakdown(w http.ResponseWriter, r *http.Request) {
	var req optimalPricingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", pricing.ErrInvalidArgument, err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	breakdown, err := h.calculator.QuantityBreakdown(r.Context(), req.toPriceRequest(), req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, breakdown)
}
