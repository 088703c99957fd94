package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrBulkOrderNotFound       = errors.New("bulk order not found")
	ErrInvalidStatusTransition = errors.New("invalid bulk order status transition")
)

type BulkOrderStore struct {
	pool *pgxpool.Pool
}

func NewBulkOrderStore(pool *pgxpool.Pool) *BulkOrderStore {
	return &BulkOrderStore{pool: pool}
}

func (s *BulkOrderStore) Create(ctx context.Context, order *BulkOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	query := `
		INSERT INTO bulk_orders
			(id, product_id, tier_id, user_id, quantity, tier_price, original_price,
			 savings, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10)
		RETURNING created_at
	`
	return s.pool.QueryRow(ctx, query,
		order.ID, order.ProductID, order.TierID, order.UserID, order.Quantity,
		order.TierPrice, order.OriginalPrice, order.Savings, order.Status,
		order.ExpiresAt,
	).Scan(&order.CreatedAt)
}

func (s *BulkOrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*BulkOrder, error) {
	row := s.pool.QueryRow(ctx, selectBulkOrderQuery+` WHERE id = $1`, orderID)
	return scanBulkOrder(row)
}

// VolumeSince sums pending+confirmed quantity for a product since the cutoff.
// This is the aggregate that drives tier advancement.
func (s *BulkOrderStore) VolumeSince(ctx context.Context, productID string, since time.Time) (totalQuantity, orderCount int, err error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0), COUNT(*)
		FROM bulk_orders
		WHERE product_id = $1 AND created_at >= $2 AND status IN ('pending', 'confirmed')
	`
	err = s.pool.QueryRow(ctx, query, productID, since).Scan(&totalQuantity, &orderCount)
	return totalQuantity, orderCount, err
}

// ListExpiredPending returns pending orders whose reservation window has
// lapsed, for an external sweep to cancel.
func (s *BulkOrderStore) ListExpiredPending(ctx context.Context, now time.Time) ([]*BulkOrder, error) {
	query := selectBulkOrderQuery + `
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at
	`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*BulkOrder
	for rows.Next() {
		order, err := scanBulkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *BulkOrderStore) MarkConfirmed(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE bulk_orders
		SET status = 'confirmed'
		WHERE id = $1 AND status = 'pending' AND expires_at > NOW()
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected unexpired pending", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *BulkOrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE bulk_orders
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending'
	`
	cmdTag, err := s.pool.Exec(ctx, query, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending", ErrInvalidStatusTransition)
	}
	return nil
}

const selectBulkOrderQuery = `
	SELECT id, product_id, tier_id, user_id, quantity, tier_price, original_price,
	       savings, status, created_at, expires_at
	FROM bulk_orders
`

func scanBulkOrder(row pgx.Row) (*BulkOrder, error) {
	order := &BulkOrder{}
	err := row.Scan(&order.ID, &order.ProductID, &order.TierID, &order.UserID,
		&order.Quantity, &order.TierPrice, &order.OriginalPrice, &order.Savings,
		&order.Status, &order.CreatedAt, &order.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBulkOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
