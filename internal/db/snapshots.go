package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotStore persists append-only price history rows. Snapshots are never
// mutated or deleted by the core.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

func (s *SnapshotStore) Append(ctx context.Context, snapshot *PriceHistorySnapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	query := `
		INSERT INTO price_history_snapshots
			(id, subject_id, price, currency, source, conversion_rate_at_capture, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		snapshot.ID, snapshot.SubjectID, snapshot.Price, snapshot.Currency,
		snapshot.Source, snapshot.ConversionRateAtCapture, snapshot.CapturedAt)
	return err
}

// ListRecent returns up to limit snapshots for a subject (currency code or
// product id), newest first.
func (s *SnapshotStore) ListRecent(ctx context.Context, subjectID string, limit int) ([]*PriceHistorySnapshot, error) {
	query := `
		SELECT id, subject_id, price, currency, source, conversion_rate_at_capture, captured_at
		FROM price_history_snapshots
		WHERE subject_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*PriceHistorySnapshot
	for rows.Next() {
		snapshot := &PriceHistorySnapshot{}
		if err := rows.Scan(&snapshot.ID, &snapshot.SubjectID, &snapshot.Price,
			&snapshot.Currency, &snapshot.Source, &snapshot.ConversionRateAtCapture,
			&snapshot.CapturedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}
