package cache

// Package cache provides short-lived caching for conversion results and
// notification de-duplication.

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for the conversion/notification cache.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// ConversionKey identifies a cached conversion rate for a currency pair.
func ConversionKey(from, to string) string {
	return fmt.Sprintf("conversion:%s:%s", from, to)
}

// TierEventKey identifies a delivered tier notification, so activation and
// completion events are not emitted twice for the same tier.
func TierEventKey(tierID, eventType string) string {
	return fmt.Sprintf("tierevent:%s:%s", tierID, eventType)
}
