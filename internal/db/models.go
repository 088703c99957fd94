package db

import (
	"time"

	"github.com/google/uuid"
)

// CurrencyRate is a supported currency with its rate to USD. Fiat and crypto
// currencies share this representation; only volatility distinguishes them in
// practice.
type CurrencyRate struct {
	Code        string    `json:"code"`
	DisplayName string    `json:"display_name"`
	Symbol      string    `json:"symbol"`
	RateToUSD   float64   `json:"rate_to_usd"`
	Volatility  float64   `json:"volatility"`
	IsStable    bool      `json:"is_stable"`
	LastUpdated time.Time `json:"last_updated"`
}

// PriceHistorySnapshot is an append-only record of an observed rate or price.
type PriceHistorySnapshot struct {
	ID                      uuid.UUID `json:"id"`
	SubjectID               string    `json:"subject_id"`
	Price                   float64   `json:"price"`
	Currency                string    `json:"currency"`
	Source                  string    `json:"source"`
	ConversionRateAtCapture float64   `json:"conversion_rate_at_capture"`
	CapturedAt              time.Time `json:"captured_at"`
}

// PricingTier is one rung of a product's bulk-discount ladder.
type PricingTier struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       string     `json:"product_id"`
	MinQuantity     int        `json:"min_quantity"`
	MaxQuantity     int        `json:"max_quantity"`
	Price           float64    `json:"price"`
	DiscountPercent float64    `json:"discount_percent"`
	SavingsAmount   float64    `json:"savings_amount"`
	IsActive        bool       `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at"`
	MaxOrders       int        `json:"max_orders"`
	CurrentOrders   int        `json:"current_orders"`
	TimeLimitHours  int        `json:"time_limit_hours"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Live reports whether the tier accepts orders at the given instant.
func (t *PricingTier) Live(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}

type BulkOrderStatus string

const (
	BulkOrderPending   BulkOrderStatus = "pending"
	BulkOrderConfirmed BulkOrderStatus = "confirmed"
	BulkOrderCancelled BulkOrderStatus = "cancelled"
)

// BulkOrder is a buyer's reservation of a quantity under a specific tier.
type BulkOrder struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     string          `json:"product_id"`
	TierID        uuid.UUID       `json:"tier_id"`
	UserID        string          `json:"user_id"`
	Quantity      int             `json:"quantity"`
	TierPrice     float64         `json:"tier_price"`
	OriginalPrice float64         `json:"original_price"`
	Savings       float64         `json:"savings"`
	Status        BulkOrderStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}
