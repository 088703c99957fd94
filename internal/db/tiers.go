package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTierNotFound = errors.New("pricing tier not found")

	// ErrTierSlotUnavailable is returned by ReserveSlot when the conditional
	// increment matched no row: the tier is inactive or at capacity.
	ErrTierSlotUnavailable = errors.New("tier slot unavailable")
)

type TierStore struct {
	pool *pgxpool.Pool
}

func NewTierStore(pool *pgxpool.Pool) *TierStore {
	return &TierStore{pool: pool}
}

// Upsert inserts or updates a tier keyed by (product_id, min_quantity).
// Re-running setup with the same ladder updates rows in place; it never
// duplicates rungs and never resets current_orders.
func (s *TierStore) Upsert(ctx context.Context, tier *PricingTier) error {
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}
	query := `
		INSERT INTO pricing_tiers
			(id, product_id, min_quantity, max_quantity, price, discount_percent,
			 savings_amount, is_active, expires_at, max_orders, current_orders,
			 time_limit_hours, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW())
		ON CONFLICT (product_id, min_quantity) DO UPDATE
		SET max_quantity = EXCLUDED.max_quantity,
		    price = EXCLUDED.price,
		    discount_percent = EXCLUDED.discount_percent,
		    savings_amount = EXCLUDED.savings_amount,
		    is_active = EXCLUDED.is_active,
		    expires_at = EXCLUDED.expires_at,
		    max_orders = EXCLUDED.max_orders,
		    time_limit_hours = EXCLUDED.time_limit_hours
		RETURNING id, current_orders, created_at
	`
	return s.pool.QueryRow(ctx, query,
		tier.ID, tier.ProductID, tier.MinQuantity, tier.MaxQuantity, tier.Price,
		tier.DiscountPercent, tier.SavingsAmount, tier.IsActive, tier.ExpiresAt,
		tier.MaxOrders, tier.TimeLimitHours,
	).Scan(&tier.ID, &tier.CurrentOrders, &tier.CreatedAt)
}

func (s *TierStore) GetByID(ctx context.Context, tierID uuid.UUID) (*PricingTier, error) {
	row := s.pool.QueryRow(ctx, selectTierQuery+` WHERE id = $1`, tierID)
	return scanTier(row)
}

// ListByProduct returns all of a product's tiers ordered by min_quantity.
func (s *TierStore) ListByProduct(ctx context.Context, productID string) ([]*PricingTier, error) {
	rows, err := s.pool.Query(ctx, selectTierQuery+` WHERE product_id = $1 ORDER BY min_quantity`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTiers(rows)
}

// ListActive returns live tiers across all products, soonest-expiring first.
func (s *TierStore) ListActive(ctx context.Context, now time.Time) ([]*PricingTier, error) {
	query := selectTierQuery + `
		WHERE is_active AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY expires_at NULLS LAST, product_id, min_quantity
	`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTiers(rows)
}

// ReserveSlot atomically increments current_orders while guarding the capacity
// cap and the countdown expiry. Two concurrent reservations against the last
// slot cannot both succeed, and a tier that lapsed after matching cannot take
// the reservation. The returned tier reflects the post-increment row.
func (s *TierStore) ReserveSlot(ctx context.Context, tierID uuid.UUID, now time.Time) (*PricingTier, error) {
	query := `
		UPDATE pricing_tiers
		SET current_orders = current_orders + 1
		WHERE id = $1 AND is_active AND current_orders < max_orders
			AND (expires_at IS NULL OR expires_at > $2)
		RETURNING ` + tierColumns
	row := s.pool.QueryRow(ctx, query, tierID, now)
	tier, err := scanTier(row)
	if errors.Is(err, ErrTierNotFound) {
		return nil, ErrTierSlotUnavailable
	}
	return tier, err
}

// ReleaseSlot undoes a reservation whose order row was never written.
func (s *TierStore) ReleaseSlot(ctx context.Context, tierID uuid.UUID) error {
	query := `
		UPDATE pricing_tiers
		SET current_orders = current_orders - 1
		WHERE id = $1 AND current_orders > 0
	`
	_, err := s.pool.Exec(ctx, query, tierID)
	return err
}

// Activate marks a tier live and stamps its countdown expiry.
func (s *TierStore) Activate(ctx context.Context, tierID uuid.UUID, expiresAt time.Time) error {
	query := `
		UPDATE pricing_tiers
		SET is_active = TRUE, expires_at = $2
		WHERE id = $1
	`
	cmdTag, err := s.pool.Exec(ctx, query, tierID, expiresAt)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTierNotFound
	}
	return nil
}

func (s *TierStore) Deactivate(ctx context.Context, tierID uuid.UUID) error {
	query := `
		UPDATE pricing_tiers
		SET is_active = FALSE
		WHERE id = $1
	`
	cmdTag, err := s.pool.Exec(ctx, query, tierID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrTierNotFound
	}
	return nil
}

const tierColumns = `id, product_id, min_quantity, max_quantity, price, discount_percent,
	savings_amount, is_active, expires_at, max_orders, current_orders,
	time_limit_hours, created_at`

const selectTierQuery = `SELECT ` + tierColumns + ` FROM pricing_tiers`

func scanTier(row pgx.Row) (*PricingTier, error) {
	tier := &PricingTier{}
	err := row.Scan(&tier.ID, &tier.ProductID, &tier.MinQuantity, &tier.MaxQuantity,
		&tier.Price, &tier.DiscountPercent, &tier.SavingsAmount, &tier.IsActive,
		&tier.ExpiresAt, &tier.MaxOrders, &tier.CurrentOrders,
		&tier.TimeLimitHours, &tier.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func scanTiers(rows pgx.Rows) ([]*PricingTier, error) {
	var tiers []*PricingTier
	for rows.Next() {
		tier, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, rows.Err()
}
