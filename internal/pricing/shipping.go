package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/souqflowapp/souqflow/internal/currency"
)

var ErrInvalidArgument = errors.New("invalid argument")

// converter is the slice of the currency ledger shipping and pricing need.
type converter interface {
	Convert(ctx context.Context, amount float64, fromCode, toCode string) (*currency.Conversion, error)
}

// ShippingCalculator computes shipping fees from weight, dimensions,
// destination zone, and method, with calendar seasonal surcharges.
type ShippingCalculator struct {
	config    *ZoneConfig
	converter converter
}

func NewShippingCalculator(config *ZoneConfig, conv converter) *ShippingCalculator {
	return &ShippingCalculator{config: config, converter: conv}
}

type ShippingQuote struct {
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`
	EstimatedDaysMin int     `json:"estimated_days_min"`
	EstimatedDaysMax int     `json:"estimated_days_max"`
	ZoneID           string  `json:"zone_id"`
	Method           string  `json:"method"`
	FreeShipping     bool    `json:"free_shipping"`
}

// Calculate quotes shipping for one shipment. Order value is compared against
// the zone's free-shipping threshold (or the method's minimum order value when
// the zone has none) for free-shipping-eligible methods.
func (s *ShippingCalculator) Calculate(ctx context.Context, weight float64, dims Dimensions, destinationCountry, methodID string, orderValue float64, at time.Time) (*ShippingQuote, error) {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("%w: weight %v", ErrInvalidArgument, weight)
	}
	if orderValue < 0 {
		return nil, fmt.Errorf("%w: order value %v", ErrInvalidArgument, orderValue)
	}

	method := s.config.MethodByID(methodID)
	if method == nil {
		return nil, fmt.Errorf("%w: unknown shipping method %q", ErrInvalidArgument, methodID)
	}
	zone := s.config.ZoneFor(destinationCountry)
	if zone == nil {
		return nil, fmt.Errorf("%w: no zone for country %q", ErrInvalidArgument, destinationCountry)
	}

	quote := &ShippingQuote{
		Currency:         zone.Currency,
		EstimatedDaysMin: clampDays(zone.DeliveryDaysMin + method.DaysMinDelta),
		EstimatedDaysMax: clampDays(zone.DeliveryDaysMax + method.DaysMaxDelta),
		ZoneID:           zone.ID,
		Method:           method.ID,
	}
	if quote.EstimatedDaysMax < quote.EstimatedDaysMin {
		quote.EstimatedDaysMax = quote.EstimatedDaysMin
	}

	if method.FreeShippingEligible && orderValue >= freeShippingThreshold(zone, method) {
		quote.FreeShipping = true
		return quote, nil
	}

	chargeable := ChargeableWeight(weight, dims)
	cost := (zone.BaseFee + chargeable*zone.PerKgFee) * method.RateMultiplier
	cost *= SeasonalShippingMultiplier(at)

	if method.Currency != zone.Currency {
		converted, err := s.converter.Convert(ctx, cost, method.Currency, zone.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert shipping cost: %w", err)
		}
		cost = converted.ConvertedAmount
	}

	quote.Cost = round2(cost)
	return quote, nil
}

// AvailableMethods lists shipping methods with delivery estimates for the
// destination country's zone.
func (s *ShippingCalculator) AvailableMethods(destinationCountry string) []ShippingQuote {
	zone := s.config.ZoneFor(destinationCountry)
	if zone == nil {
		return nil
	}

	quotes := make([]ShippingQuote, 0, len(s.config.Methods))
	for _, method := range s.config.Methods {
		quote := ShippingQuote{
			Currency:         zone.Currency,
			EstimatedDaysMin: clampDays(zone.DeliveryDaysMin + method.DaysMinDelta),
			EstimatedDaysMax: clampDays(zone.DeliveryDaysMax + method.DaysMaxDelta),
			ZoneID:           zone.ID,
			Method:           method.ID,
		}
		if quote.EstimatedDaysMax < quote.EstimatedDaysMin {
			quote.EstimatedDaysMax = quote.EstimatedDaysMin
		}
		quotes = append(quotes, quote)
	}
	return quotes
}

// SeasonalShippingMultiplier is a pure function of calendar month: +20%
// during the November-January holiday peak, +10% during the June-August
// summer peak.
func SeasonalShippingMultiplier(at time.Time) float64 {
	switch at.Month() {
	case time.November, time.December, time.January:
		return 1.2
	case time.June, time.July, time.August:
		return 1.1
	default:
		return 1.0
	}
}

func freeShippingThreshold(zone *Zone, method *Method) float64 {
	if zone.FreeShippingThreshold > 0 {
		return zone.FreeShippingThreshold
	}
	return method.MinOrderValue
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	return days
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
