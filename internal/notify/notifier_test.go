package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestWebhookNotifierDeliversEvent(t *testing.T) {
	t.Parallel()

	var received Event
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode event: %v", err)
		}
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, server.Client(), nil)
	notifier.TierEvent(context.Background(), Event{
		ProductID: "prod-1",
		TierID:    "tier-1",
		EventType: EventTierActivated,
		Message:   "tier is live",
	})

	if calls.Load() != 1 {
		t.Fatalf("webhook called %d times, want 1", calls.Load())
	}
	if received.ProductID != "prod-1" || received.EventType != EventTierActivated {
		t.Fatalf("unexpected event payload: %+v", received)
	}
}

func TestWebhookNotifierSwallowsFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, server.Client(), nil)
	// Rejection must not panic or propagate; delivery is fire-and-forget.
	notifier.TierEvent(context.Background(), Event{EventType: EventTierCompleted})

	unreachable := NewNotifier("http://127.0.0.1:1", nil, nil)
	unreachable.TierEvent(context.Background(), Event{EventType: EventTierCompleted})
}

func TestNewNotifierWithoutURLIsNoop(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier("", nil, nil)
	if _, ok := notifier.(noopNotifier); !ok {
		t.Fatalf("got %T, want noopNotifier", notifier)
	}
	notifier.TierEvent(context.Background(), Event{EventType: EventTierActivated})
}
