package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/souqflowapp/souqflow/internal/observability"
)

func TestMetricsContextInjectsRequestMeter(t *testing.T) {
	t.Parallel()

	h := &Handlers{logger: testLogger()}
	handler := h.MetricsContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meter := observability.MeterFromContext(r.Context())
		if meter == nil {
			t.Error("expected a meter in the request context")
		}
		// Recording against the request meter must be safe without an
		// initialized SDK.
		meter.Count("test.requests", 1)
		w.WriteHeader(http.StatusNoContent)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", recorder.Code)
	}
}
