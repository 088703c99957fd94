package pricing

// The optimal pricing calculator combines source cost, shipping, and margin
// into a landed price with a full breakdown.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/souqflowapp/souqflow/internal/logging"
)

// negotiationBuffer pads the recommended price 5% above the computed total.
const negotiationBuffer = 1.05

type Calculator struct {
	converter converter
	shipping  *ShippingCalculator
	margins   *MarginEngine
	logger    *slog.Logger
}

func NewCalculator(conv converter, shipping *ShippingCalculator, margins *MarginEngine, logger *slog.Logger) *Calculator {
	return &Calculator{
		converter: conv,
		shipping:  shipping,
		margins:   margins,
		logger:    logger,
	}
}

type PriceRequest struct {
	SourcePrice      float64
	SourceCurrency   string
	Category         string
	TargetCountry    string
	TargetCurrency   string
	Weight           float64
	Dimensions       Dimensions
	ShippingMethod   string
	CompetitivePrice *float64
	At               time.Time
}

// Breakdown is the computed pricing result. Savings is signed: it compares
// the landed price against the zero-margin reference, so applied margin shows
// up as negative savings.
type Breakdown struct {
	BasePrice        float64 `json:"base_price"`
	OriginalPrice    float64 `json:"original_price"`
	ProfitMargin     float64 `json:"profit_margin"`
	ProfitAmount     float64 `json:"profit_amount"`
	ShippingCost     float64 `json:"shipping_cost"`
	TotalPrice       float64 `json:"total_price"`
	Currency         string  `json:"currency"`
	Savings          float64 `json:"savings"`
	SavingsPercent   float64 `json:"savings_percent"`
	IsProfitable     bool    `json:"is_profitable"`
	RecommendedPrice float64 `json:"recommended_price"`
	Quantity         int     `json:"quantity"`
}

// PriceProduct computes a single-unit landed price: source price converted to
// the target currency, plus shipping, plus the policy margin.
func (c *Calculator) PriceProduct(ctx context.Context, req PriceRequest) (*Breakdown, error) {
	if req.SourcePrice <= 0 || math.IsNaN(req.SourcePrice) || math.IsInf(req.SourcePrice, 0) {
		return nil, fmt.Errorf("%w: source price %v", ErrInvalidArgument, req.SourcePrice)
	}
	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	method := req.ShippingMethod
	if method == "" {
		method = "standard"
	}

	base, err := c.converter.Convert(ctx, req.SourcePrice, req.SourceCurrency, req.TargetCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert source price: %w", err)
	}
	basePrice := base.ConvertedAmount

	quote, err := c.shipping.Calculate(ctx, req.Weight, req.Dimensions, req.TargetCountry, method, basePrice, at)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shipping: %w", err)
	}
	shippingCost := quote.Cost
	if quote.Currency != req.TargetCurrency {
		converted, err := c.converter.Convert(ctx, quote.Cost, quote.Currency, req.TargetCurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert shipping cost: %w", err)
		}
		shippingCost = converted.ConvertedAmount
	}

	competitive := req.CompetitivePrice
	if competitive != nil {
		converted, err := c.converter.Convert(ctx, *competitive, req.SourceCurrency, req.TargetCurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert competitive price: %w", err)
		}
		competitive = &converted.ConvertedAmount
	}

	margin := c.margins.ComputeMargin(req.Category, at, competitive, basePrice)
	profitAmount := basePrice * margin / 100
	totalPrice := basePrice + profitAmount + shippingCost
	originalPrice := basePrice + shippingCost
	savings := originalPrice - totalPrice

	breakdown := &Breakdown{
		BasePrice:        round2(basePrice),
		OriginalPrice:    round2(originalPrice),
		ProfitMargin:     margin,
		ProfitAmount:     round2(profitAmount),
		ShippingCost:     round2(shippingCost),
		TotalPrice:       round2(totalPrice),
		Currency:         req.TargetCurrency,
		Savings:          round2(savings),
		SavingsPercent:   round2(savingsPercent(savings, originalPrice)),
		IsProfitable:     totalPrice > basePrice+shippingCost,
		RecommendedPrice: round2(totalPrice * negotiationBuffer),
		Quantity:         1,
	}

	logging.FromContext(ctx, c.logger).Debug("computed pricing breakdown",
		"category", req.Category,
		"target_country", req.TargetCountry,
		"margin", margin,
		"total", breakdown.TotalPrice,
	)
	return breakdown, nil
}

// QuantityBreakdown scales a unit breakdown to an order quantity. Base and
// profit scale linearly; shipping scales by min(quantity*0.8, 1), the bulk
// shipment consolidation rule carried over from the storefront.
func (c *Calculator) QuantityBreakdown(ctx context.Context, req PriceRequest, quantity int) (*Breakdown, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidArgument, quantity)
	}

	unit, err := c.PriceProduct(ctx, req)
	if err != nil {
		return nil, err
	}
	if quantity == 1 {
		return unit, nil
	}

	q := float64(quantity)
	shippingFactor := math.Min(q*0.8, 1)
	shippingCost := unit.ShippingCost * shippingFactor
	profitAmount := unit.ProfitAmount * q
	totalPrice := unit.BasePrice*q + profitAmount + shippingCost
	originalPrice := unit.BasePrice*q + shippingCost
	savings := originalPrice - totalPrice

	return &Breakdown{
		BasePrice:        unit.BasePrice,
		OriginalPrice:    round2(originalPrice),
		ProfitMargin:     unit.ProfitMargin,
		ProfitAmount:     round2(profitAmount),
		ShippingCost:     round2(shippingCost),
		TotalPrice:       round2(totalPrice),
		Currency:         unit.Currency,
		Savings:          round2(savings),
		SavingsPercent:   round2(savingsPercent(savings, originalPrice)),
		IsProfitable:     totalPrice > unit.BasePrice*q+shippingCost,
		RecommendedPrice: round2(totalPrice * negotiationBuffer),
		Quantity:         quantity,
	}, nil
}

func savingsPercent(savings, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return savings / reference * 100
}
