package bulk

import (
	"fmt"
)

// TierSpec is one rung of a bulk-discount ladder, as supplied by setup.
type TierSpec struct {
	MinQuantity     int     `json:"min_quantity"`
	MaxQuantity     int     `json:"max_quantity"`
	DiscountPercent float64 `json:"discount_percent"`
	MaxOrders       int     `json:"max_orders"`
	TimeLimitHours  int     `json:"time_limit_hours"`
}

// DefaultLadder is the standard 6-rung group-buy ladder applied when setup is
// called without custom tiers.
func DefaultLadder() []TierSpec {
	return []TierSpec{
		{MinQuantity: 1, MaxQuantity: 9, DiscountPercent: 0, MaxOrders: 500, TimeLimitHours: 72},
		{MinQuantity: 10, MaxQuantity: 49, DiscountPercent: 15, MaxOrders: 300, TimeLimitHours: 72},
		{MinQuantity: 50, MaxQuantity: 99, DiscountPercent: 25, MaxOrders: 200, TimeLimitHours: 96},
		{MinQuantity: 100, MaxQuantity: 499, DiscountPercent: 35, MaxOrders: 100, TimeLimitHours: 120},
		{MinQuantity: 500, MaxQuantity: 999, DiscountPercent: 45, MaxOrders: 50, TimeLimitHours: 168},
		{MinQuantity: 1000, MaxQuantity: 9999, DiscountPercent: 60, MaxOrders: 20, TimeLimitHours: 240},
	}
}

// ValidateLadder checks that tier quantity ranges are well-formed, ordered,
// and pairwise disjoint.
func ValidateLadder(specs []TierSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("at least one tier is required")
	}

	for i, spec := range specs {
		if spec.MinQuantity <= 0 {
			return fmt.Errorf("tier %d: min quantity must be positive", i)
		}
		if spec.MaxQuantity < spec.MinQuantity {
			return fmt.Errorf("tier %d: max quantity must be >= min quantity", i)
		}
		if spec.DiscountPercent < 0 || spec.DiscountPercent >= 100 {
			return fmt.Errorf("tier %d: discount must be in [0, 100)", i)
		}
		if spec.MaxOrders <= 0 {
			return fmt.Errorf("tier %d: max orders must be positive", i)
		}
		if spec.TimeLimitHours <= 0 {
			return fmt.Errorf("tier %d: time limit must be positive", i)
		}
		if i > 0 && spec.MinQuantity <= specs[i-1].MaxQuantity {
			return fmt.Errorf("tier %d: range overlaps tier %d", i, i-1)
		}
	}
	return nil
}
