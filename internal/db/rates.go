package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRateNotFound = errors.New("currency rate not found")

type RateStore struct {
	pool *pgxpool.Pool
}

func NewRateStore(pool *pgxpool.Pool) *RateStore {
	return &RateStore{pool: pool}
}

// Upsert inserts or updates a rate row keyed by currency code.
func (s *RateStore) Upsert(ctx context.Context, rate *CurrencyRate) error {
	query := `
		INSERT INTO currency_rates (code, display_name, symbol, rate_to_usd, volatility, is_stable, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    symbol = EXCLUDED.symbol,
		    rate_to_usd = EXCLUDED.rate_to_usd,
		    volatility = EXCLUDED.volatility,
		    is_stable = EXCLUDED.is_stable,
		    last_updated = EXCLUDED.last_updated
	`
	_, err := s.pool.Exec(ctx, query,
		normalizeCode(rate.Code), rate.DisplayName, rate.Symbol,
		rate.RateToUSD, rate.Volatility, rate.IsStable, rate.LastUpdated)
	return err
}

// UpsertMissing inserts a rate row only if the currency is not yet configured.
// Used to seed static defaults at startup without clobbering refreshed rates.
func (s *RateStore) UpsertMissing(ctx context.Context, rate *CurrencyRate) error {
	query := `
		INSERT INTO currency_rates (code, display_name, symbol, rate_to_usd, volatility, is_stable, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		normalizeCode(rate.Code), rate.DisplayName, rate.Symbol,
		rate.RateToUSD, rate.Volatility, rate.IsStable, rate.LastUpdated)
	return err
}

func (s *RateStore) Get(ctx context.Context, code string) (*CurrencyRate, error) {
	query := `
		SELECT code, display_name, symbol, rate_to_usd, volatility, is_stable, last_updated
		FROM currency_rates
		WHERE code = $1
	`
	rate := &CurrencyRate{}
	err := s.pool.QueryRow(ctx, query, normalizeCode(code)).Scan(
		&rate.Code, &rate.DisplayName, &rate.Symbol,
		&rate.RateToUSD, &rate.Volatility, &rate.IsStable, &rate.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateNotFound
	}
	if err != nil {
		return nil, err
	}
	return rate, nil
}

func (s *RateStore) List(ctx context.Context) ([]*CurrencyRate, error) {
	query := `
		SELECT code, display_name, symbol, rate_to_usd, volatility, is_stable, last_updated
		FROM currency_rates
		ORDER BY code
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []*CurrencyRate
	for rows.Next() {
		rate := &CurrencyRate{}
		if err := rows.Scan(&rate.Code, &rate.DisplayName, &rate.Symbol,
			&rate.RateToUSD, &rate.Volatility, &rate.IsStable, &rate.LastUpdated); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

// UpdateVolatility stores a recomputed volatility and its derived stability flag.
func (s *RateStore) UpdateVolatility(ctx context.Context, code string, volatility float64, isStable bool) error {
	query := `
		UPDATE currency_rates
		SET volatility = $2, is_stable = $3
		WHERE code = $1
	`
	cmdTag, err := s.pool.Exec(ctx, query, normalizeCode(code), volatility, isStable)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRateNotFound
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
