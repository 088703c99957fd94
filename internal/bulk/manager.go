package bulk

// Package bulk manages per-product ladders of quantity-based discount tiers:
// time-boxed, capacity-capped rungs that advance as aggregate order volume
// crosses thresholds.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/souqflowapp/souqflow/internal/cache"
	"github.com/souqflowapp/souqflow/internal/catalog"
	"github.com/souqflowapp/souqflow/internal/db"
	"github.com/souqflowapp/souqflow/internal/logging"
	"github.com/souqflowapp/souqflow/internal/notify"
	"github.com/souqflowapp/souqflow/internal/observability"
)

var (
	ErrNoApplicableTier     = errors.New("no applicable tier")
	ErrTierCapacityExceeded = errors.New("tier capacity exceeded")
	ErrTierExpired          = errors.New("tier expired")
	ErrInvalidQuantity      = errors.New("invalid quantity")
)

const (
	// reservationWindow is how long a buyer has to confirm a pending order.
	reservationWindow = 24 * time.Hour

	// volumeWindow bounds the aggregate-volume lookback for tier advancement.
	volumeWindow = 30 * 24 * time.Hour

	// velocityWindow is the observation window assumed when estimating order
	// velocity for time-to-next-tier.
	velocityWindow = 24 * time.Hour

	hotDealProgressThreshold = 80.0

	notifyDedupTTL = 24 * time.Hour
)

type tierStore interface {
	Upsert(ctx context.Context, tier *db.PricingTier) error
	GetByID(ctx context.Context, tierID uuid.UUID) (*db.PricingTier, error)
	ListByProduct(ctx context.Context, productID string) ([]*db.PricingTier, error)
	ListActive(ctx context.Context, now time.Time) ([]*db.PricingTier, error)
	ReserveSlot(ctx context.Context, tierID uuid.UUID, now time.Time) (*db.PricingTier, error)
	ReleaseSlot(ctx context.Context, tierID uuid.UUID) error
	Activate(ctx context.Context, tierID uuid.UUID, expiresAt time.Time) error
	Deactivate(ctx context.Context, tierID uuid.UUID) error
}

type bulkOrderStore interface {
	Create(ctx context.Context, order *db.BulkOrder) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.BulkOrder, error)
	VolumeSince(ctx context.Context, productID string, since time.Time) (int, int, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]*db.BulkOrder, error)
	MarkConfirmed(ctx context.Context, orderID uuid.UUID) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID) error
}

type productCatalog interface {
	GetProduct(ctx context.Context, productID string) (*catalog.Product, error)
}

type Manager struct {
	tiers         tierStore
	orders        bulkOrderStore
	catalog       productCatalog
	notifier      notify.Notifier
	cacheProvider cache.Provider
	logger        *slog.Logger
	now           func() time.Time
}

func NewManager(tiers tierStore, orders bulkOrderStore, productCatalog productCatalog, notifier notify.Notifier, cacheProvider cache.Provider, logger *slog.Logger) *Manager {
	return &Manager{
		tiers:         tiers,
		orders:        orders,
		catalog:       productCatalog,
		notifier:      notifier,
		cacheProvider: cacheProvider,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, m.logger)
}

// SetupBulkPricing upserts a product's tier ladder. A nil spec list applies
// the default ladder. Upsert is keyed by (product, min quantity), so repeated
// setup with the same ladder is idempotent.
func (m *Manager) SetupBulkPricing(ctx context.Context, productID string, specs []TierSpec) ([]*db.PricingTier, error) {
	if specs == nil {
		specs = DefaultLadder()
	}
	if err := ValidateLadder(specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}

	product, err := m.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	tiers := make([]*db.PricingTier, 0, len(specs))
	for _, spec := range specs {
		price := round2(product.BasePrice * (1 - spec.DiscountPercent/100))
		expiresAt := now.Add(time.Duration(spec.TimeLimitHours) * time.Hour)
		tier := &db.PricingTier{
			ProductID:       productID,
			MinQuantity:     spec.MinQuantity,
			MaxQuantity:     spec.MaxQuantity,
			Price:           price,
			DiscountPercent: spec.DiscountPercent,
			SavingsAmount:   round2(product.BasePrice - price),
			IsActive:        true,
			ExpiresAt:       &expiresAt,
			MaxOrders:       spec.MaxOrders,
			TimeLimitHours:  spec.TimeLimitHours,
		}
		if err := m.tiers.Upsert(ctx, tier); err != nil {
			return nil, fmt.Errorf("failed to upsert tier %d-%d: %w", spec.MinQuantity, spec.MaxQuantity, err)
		}
		tiers = append(tiers, tier)
	}

	m.loggerFromContext(ctx).Info("bulk pricing configured",
		"product_id", productID, "tiers", len(tiers))
	return tiers, nil
}

// PlaceBulkOrder reserves quantity under the applicable tier. The capacity
// increment is a single conditional update in the store, so two concurrent
// orders against the last slot cannot both succeed.
func (m *Manager) PlaceBulkOrder(ctx context.Context, productID, userID string, quantity int) (*db.BulkOrder, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	meter := observability.MeterFromContext(ctx)
	meter.Count("bulk.order.requested", 1, sentry.WithAttributes(
		attribute.String("product_id", productID),
	))

	product, err := m.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	tier, err := m.matchTier(ctx, productID, quantity, now)
	if err != nil {
		return nil, err
	}
	if tier.CurrentOrders >= tier.MaxOrders {
		return nil, fmt.Errorf("%w: tier %s", ErrTierCapacityExceeded, tier.ID)
	}

	reserved, err := m.tiers.ReserveSlot(ctx, tier.ID, now)
	if errors.Is(err, db.ErrTierSlotUnavailable) {
		return nil, fmt.Errorf("%w: tier %s", ErrTierCapacityExceeded, tier.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve tier slot: %w", err)
	}

	originalPrice := round2(float64(quantity) * product.BasePrice)
	tierPrice := round2(float64(quantity) * reserved.Price)
	order := &db.BulkOrder{
		ProductID:     productID,
		TierID:        reserved.ID,
		UserID:        userID,
		Quantity:      quantity,
		TierPrice:     tierPrice,
		OriginalPrice: originalPrice,
		Savings:       round2(originalPrice - tierPrice),
		Status:        db.BulkOrderPending,
		ExpiresAt:     now.Add(reservationWindow),
	}
	if err := m.orders.Create(ctx, order); err != nil {
		// Give the slot back so a failed insert does not shrink tier capacity.
		if releaseErr := m.tiers.ReleaseSlot(ctx, reserved.ID); releaseErr != nil {
			m.loggerFromContext(ctx).Error("failed to release reserved tier slot",
				"error", releaseErr, "tier_id", reserved.ID)
		}
		return nil, fmt.Errorf("failed to create bulk order: %w", err)
	}

	meter.Count("bulk.order.placed", 1, sentry.WithAttributes(
		attribute.String("product_id", productID),
		attribute.Float64("discount_percent", reserved.DiscountPercent),
	))
	m.loggerFromContext(ctx).Info("bulk order placed",
		"order_id", order.ID, "product_id", productID, "quantity", quantity,
		"tier_id", reserved.ID, "discount", reserved.DiscountPercent)

	if reserved.CurrentOrders >= reserved.MaxOrders {
		m.completeTier(ctx, reserved)
	}

	return order, nil
}

// matchTier picks the tier whose range contains the quantity among active
// tiers, preferring the highest discount; it distinguishes "everything
// matching has expired" from "nothing matches".
func (m *Manager) matchTier(ctx context.Context, productID string, quantity int, now time.Time) (*db.PricingTier, error) {
	tiers, err := m.tiers.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}

	var best *db.PricingTier
	sawExpired := false
	for _, tier := range tiers {
		if quantity < tier.MinQuantity || quantity > tier.MaxQuantity || !tier.IsActive {
			continue
		}
		if tier.ExpiresAt != nil && now.After(*tier.ExpiresAt) {
			sawExpired = true
			continue
		}
		if best == nil || tier.DiscountPercent > best.DiscountPercent {
			best = tier
		}
	}
	if best == nil {
		if sawExpired {
			return nil, fmt.Errorf("%w: product %s quantity %d", ErrTierExpired, productID, quantity)
		}
		return nil, fmt.Errorf("%w: product %s quantity %d", ErrNoApplicableTier, productID, quantity)
	}
	return best, nil
}

func (m *Manager) completeTier(ctx context.Context, tier *db.PricingTier) {
	logger := m.loggerFromContext(ctx)
	if err := m.tiers.Deactivate(ctx, tier.ID); err != nil {
		logger.Error("failed to deactivate full tier", "error", err, "tier_id", tier.ID)
	}
	observability.MeterFromContext(ctx).Count("bulk.tier.completed", 1, sentry.WithAttributes(
		attribute.String("product_id", tier.ProductID),
	))
	m.emitTierEvent(ctx, tier, notify.EventTierCompleted,
		fmt.Sprintf("Bulk tier %d-%d units for product %s reached capacity", tier.MinQuantity, tier.MaxQuantity, tier.ProductID))
}

// emitTierEvent fires a notification once per (tier, event type), using the
// cache provider to suppress duplicates.
func (m *Manager) emitTierEvent(ctx context.Context, tier *db.PricingTier, eventType, message string) {
	logger := m.loggerFromContext(ctx)
	key := cache.TierEventKey(tier.ID.String(), eventType)
	if m.cacheProvider != nil {
		if _, err := m.cacheProvider.Get(ctx, key); err == nil {
			return
		}
		if err := m.cacheProvider.Set(ctx, key, "sent", notifyDedupTTL); err != nil {
			logger.Debug("failed to record tier event key", "error", err, "key", key)
		}
	}
	m.notifier.TierEvent(ctx, notify.Event{
		ProductID: tier.ProductID,
		TierID:    tier.ID.String(),
		EventType: eventType,
		Message:   message,
	})
}

// VolumeUpdate reports the outcome of a volume-driven tier advancement pass.
type VolumeUpdate struct {
	ProductID     string          `json:"product_id"`
	TotalQuantity int             `json:"total_quantity"`
	OrderCount    int             `json:"order_count"`
	ActivatedTier *db.PricingTier `json:"activated_tier,omitempty"`
}

// UpdatePricingBasedOnVolume recomputes 30-day aggregate volume and advances
// the ladder: the tier whose range contains the aggregate becomes live with a
// fresh countdown, and lower rungs are retired.
func (m *Manager) UpdatePricingBasedOnVolume(ctx context.Context, productID string) (*VolumeUpdate, error) {
	now := m.now()
	totalQuantity, orderCount, err := m.orders.VolumeSince(ctx, productID, now.Add(-volumeWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order volume: %w", err)
	}

	update := &VolumeUpdate{
		ProductID:     productID,
		TotalQuantity: totalQuantity,
		OrderCount:    orderCount,
	}

	tiers, err := m.tiers.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}

	var target *db.PricingTier
	for _, tier := range tiers {
		if totalQuantity >= tier.MinQuantity && totalQuantity <= tier.MaxQuantity {
			target = tier
			break
		}
	}
	if target == nil || target.Live(now) {
		return update, nil
	}

	expiresAt := now.Add(time.Duration(target.TimeLimitHours) * time.Hour)
	if err := m.tiers.Activate(ctx, target.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to activate tier: %w", err)
	}
	target.IsActive = true
	target.ExpiresAt = &expiresAt
	update.ActivatedTier = target

	logger := m.loggerFromContext(ctx)
	for _, tier := range tiers {
		if tier.IsActive && tier.MaxQuantity < target.MinQuantity {
			if err := m.tiers.Deactivate(ctx, tier.ID); err != nil {
				logger.Error("failed to retire superseded tier", "error", err, "tier_id", tier.ID)
			}
		}
	}

	observability.MeterFromContext(ctx).Count("bulk.tier.activated", 1, sentry.WithAttributes(
		attribute.String("product_id", productID),
	))
	m.emitTierEvent(ctx, target, notify.EventTierActivated,
		fmt.Sprintf("Bulk tier %d-%d units (%.0f%% off) is now live for product %s", target.MinQuantity, target.MaxQuantity, target.DiscountPercent, target.ProductID))
	logger.Info("tier advanced by volume",
		"product_id", productID, "total_quantity", totalQuantity, "tier_id", target.ID)

	return update, nil
}

// TierView is a tier decorated with the derived group-buy signals the UI
// renders.
type TierView struct {
	db.PricingTier
	DealProgress         float64 `json:"deal_progress"`
	IsHotDeal            bool    `json:"is_hot_deal"`
	TimeRemainingSeconds *int64  `json:"time_remaining_seconds"`
}

// ProductBulkPricing is a product's ladder with aggregate-volume context.
type ProductBulkPricing struct {
	ProductID             string     `json:"product_id"`
	TotalQuantity         int        `json:"total_quantity"`
	OrderCount            int        `json:"order_count"`
	Tiers                 []TierView `json:"tiers"`
	TimeToNextTierSeconds *int64     `json:"time_to_next_tier_seconds"`
}

// GetProductBulkPricing returns a product's full ladder with deal progress,
// hot-deal flags, and the estimated time to reach the next rung. The estimate
// is nil when order velocity is zero: unknown, not imminent.
func (m *Manager) GetProductBulkPricing(ctx context.Context, productID string) (*ProductBulkPricing, error) {
	now := m.now()
	totalQuantity, orderCount, err := m.orders.VolumeSince(ctx, productID, now.Add(-volumeWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order volume: %w", err)
	}

	tiers, err := m.tiers.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}

	result := &ProductBulkPricing{
		ProductID:     productID,
		TotalQuantity: totalQuantity,
		OrderCount:    orderCount,
		Tiers:         make([]TierView, 0, len(tiers)),
	}
	for _, tier := range tiers {
		result.Tiers = append(result.Tiers, makeTierView(tier, totalQuantity, now))
	}

	if next := nextTier(tiers, totalQuantity); next != nil {
		ordersPerHour := float64(orderCount) / velocityWindow.Hours()
		if ordersPerHour > 0 {
			seconds := int64(float64(next.MinQuantity-totalQuantity) / ordersPerHour * 3600)
			result.TimeToNextTierSeconds = &seconds
		}
	}
	return result, nil
}

// GetActiveBulkPricing lists live tiers across all products with their deal
// signals.
func (m *Manager) GetActiveBulkPricing(ctx context.Context) ([]TierView, error) {
	now := m.now()
	tiers, err := m.tiers.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tiers: %w", err)
	}
	return m.decorateTiers(ctx, tiers, now)
}

// GetHotDeals lists live tiers whose aggregate volume has filled at least 80%
// of the tier's quantity range.
func (m *Manager) GetHotDeals(ctx context.Context) ([]TierView, error) {
	now := m.now()
	tiers, err := m.tiers.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tiers: %w", err)
	}

	views, err := m.decorateTiers(ctx, tiers, now)
	if err != nil {
		return nil, err
	}
	hot := views[:0]
	for _, view := range views {
		if view.IsHotDeal {
			hot = append(hot, view)
		}
	}
	return hot, nil
}

// GetExpiringDeals lists live tiers whose countdown ends within the window.
func (m *Manager) GetExpiringDeals(ctx context.Context, within time.Duration) ([]TierView, error) {
	now := m.now()
	tiers, err := m.tiers.ListActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tiers: %w", err)
	}

	deadline := now.Add(within)
	expiring := make([]*db.PricingTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.ExpiresAt != nil && !tier.ExpiresAt.After(deadline) {
			expiring = append(expiring, tier)
		}
	}
	return m.decorateTiers(ctx, expiring, now)
}

func (m *Manager) decorateTiers(ctx context.Context, tiers []*db.PricingTier, now time.Time) ([]TierView, error) {
	volumes := make(map[string]int)
	views := make([]TierView, 0, len(tiers))
	for _, tier := range tiers {
		totalQuantity, cached := volumes[tier.ProductID]
		if !cached {
			var err error
			totalQuantity, _, err = m.orders.VolumeSince(ctx, tier.ProductID, now.Add(-volumeWindow))
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate order volume: %w", err)
			}
			volumes[tier.ProductID] = totalQuantity
		}
		views = append(views, makeTierView(tier, totalQuantity, now))
	}
	return views, nil
}

// ConfirmBulkOrder transitions an unexpired pending reservation to confirmed.
func (m *Manager) ConfirmBulkOrder(ctx context.Context, orderID uuid.UUID) (*db.BulkOrder, error) {
	if err := m.orders.MarkConfirmed(ctx, orderID); err != nil {
		return nil, err
	}
	return m.orders.GetByID(ctx, orderID)
}

// CancelBulkOrder cancels a pending reservation.
func (m *Manager) CancelBulkOrder(ctx context.Context, orderID uuid.UUID) (*db.BulkOrder, error) {
	if err := m.orders.MarkCancelled(ctx, orderID); err != nil {
		return nil, err
	}
	return m.orders.GetByID(ctx, orderID)
}

// ListExpiredPendingOrders returns pending orders whose reservation window
// has lapsed, for the external expiry sweep.
func (m *Manager) ListExpiredPendingOrders(ctx context.Context) ([]*db.BulkOrder, error) {
	return m.orders.ListExpiredPending(ctx, m.now())
}

func makeTierView(tier *db.PricingTier, totalQuantity int, now time.Time) TierView {
	view := TierView{PricingTier: *tier}
	view.DealProgress = dealProgress(totalQuantity, tier.MaxQuantity)
	view.IsHotDeal = view.DealProgress >= hotDealProgressThreshold
	if tier.ExpiresAt != nil {
		remaining := int64(tier.ExpiresAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		view.TimeRemainingSeconds = &remaining
	}
	return view
}

func dealProgress(totalQuantity, maxQuantity int) float64 {
	if maxQuantity <= 0 {
		return 0
	}
	return math.Min(100, float64(totalQuantity)/float64(maxQuantity)*100)
}

func nextTier(tiers []*db.PricingTier, totalQuantity int) *db.PricingTier {
	for _, tier := range tiers {
		if tier.MinQuantity > totalQuantity {
			return tier
		}
	}
	return nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
