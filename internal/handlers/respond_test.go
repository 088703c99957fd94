package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/souqflowapp/souqflow/internal/bulk"
	"github.com/souqflowapp/souqflow/internal/catalog"
	"github.com/souqflowapp/souqflow/internal/currency"
	"github.com/souqflowapp/souqflow/internal/db"
	"github.com/souqflowapp/souqflow/internal/pricing"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantKind   string
		wantStatus int
	}{
		{currency.ErrUnknownCurrency, "unknown_currency", http.StatusBadRequest},
		{currency.ErrInvalidAmount, "invalid_argument", http.StatusBadRequest},
		{currency.ErrInvalidRate, "invalid_argument", http.StatusBadRequest},
		{pricing.ErrInvalidArgument, "invalid_argument", http.StatusBadRequest},
		{bulk.ErrInvalidQuantity, "invalid_argument", http.StatusBadRequest},
		{catalog.ErrProductNotFound, "product_not_found", http.StatusNotFound},
		{bulk.ErrNoApplicableTier, "no_applicable_tier", http.StatusBadRequest},
		{bulk.ErrTierCapacityExceeded, "tier_capacity_exceeded", http.StatusConflict},
		{bulk.ErrTierExpired, "tier_expired", http.StatusConflict},
		{db.ErrInvalidStatusTransition, "invalid_status_transition", http.StatusConflict},
		{db.ErrBulkOrderNotFound, "not_found", http.StatusNotFound},
		{db.ErrTierNotFound, "not_found", http.StatusNotFound},
		{db.ErrRateNotFound, "not_found", http.StatusNotFound},
		{errors.New("database exploded"), "internal", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		kind, status := classifyError(tt.err)
		if kind != tt.wantKind || status != tt.wantStatus {
			t.Errorf("classifyError(%v) = (%s, %d), want (%s, %d)", tt.err, kind, status, tt.wantKind, tt.wantStatus)
		}

		// Wrapped errors classify identically.
		kind, status = classifyError(fmt.Errorf("context: %w", tt.err))
		if kind != tt.wantKind || status != tt.wantStatus {
			t.Errorf("classifyError(wrapped %v) = (%s, %d), want (%s, %d)", tt.err, kind, status, tt.wantKind, tt.wantStatus)
		}
	}
}

func TestRespondErrorRedactsInternalDetail(t *testing.T) {
	t.Parallel()

	h := &Handlers{logger: testLogger()}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/currency/rates", nil)
	h.respondError(recorder, request, errors.New("pq: connection refused at 10.0.0.5"))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}

	var body errorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Kind != "internal" {
		t.Fatalf("kind = %s, want internal", body.Error.Kind)
	}
	if body.Error.Message != "internal error" {
		t.Fatalf("message = %q, internal detail must be redacted", body.Error.Message)
	}
}

func TestRespondErrorExposesDomainDetail(t *testing.T) {
	t.Parallel()

	h := &Handlers{logger: testLogger()}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/currency/convert", nil)
	h.respondError(recorder, request, fmt.Errorf("%w: XYZ", currency.ErrUnknownCurrency))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}

	var body errorBody
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Kind != "unknown_currency" {
		t.Fatalf("kind = %s, want unknown_currency", body.Error.Kind)
	}
	if body.Error.Message != "unknown currency: XYZ" {
		t.Fatalf("message = %q, want the domain error text", body.Error.Message)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/currency/convert",
		jsonBody(`{"amount": 10, "from": "USD", "to": "AED", "surprise": true}`))

	var target convertRequest
	if err := decodeJSONBody(recorder, request, &target); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}
