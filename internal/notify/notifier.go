package notify

// Package notify delivers fire-and-forget tier lifecycle events to an
// external notification webhook. Delivery failure never blocks or fails the
// pricing operation it is attached to.

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/souqflowapp/souqflow/internal/logging"
)

const (
	EventTierActivated = "tier_activated"
	EventTierCompleted = "tier_completed"
)

type Event struct {
	ProductID string `json:"product_id"`
	TierID    string `json:"tier_id"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
}

type Notifier interface {
	TierEvent(ctx context.Context, event Event)
}

// NewNotifier returns a webhook notifier, or a noop notifier when no webhook
// URL is configured.
func NewNotifier(webhookURL string, client *http.Client, logger *slog.Logger) Notifier {
	if webhookURL == "" {
		return noopNotifier{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &webhookNotifier{url: webhookURL, client: client, logger: logger}
}

type webhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func (n *webhookNotifier) TierEvent(ctx context.Context, event Event) {
	logger := logging.FromContext(ctx, n.logger)

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("failed to encode tier event", "error", err, "event_type", event.EventType)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		logger.Warn("failed to build tier event request", "error", err, "event_type", event.EventType)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warn("tier event delivery failed", "error", err, "event_type", event.EventType, "tier_id", event.TierID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Warn("tier event rejected by webhook", "status", resp.StatusCode, "event_type", event.EventType, "tier_id", event.TierID)
	}
}

type noopNotifier struct{}

func (noopNotifier) TierEvent(ctx context.Context, event Event) {}
