package currency

// Package currency holds the exchange-rate ledger: conversion between
// configured currencies via a USD pivot, provider-driven rate refresh, and
// volatility tracking from historical snapshots.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/souqflowapp/souqflow/internal/cache"
	"github.com/souqflowapp/souqflow/internal/db"
	"github.com/souqflowapp/souqflow/internal/logging"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidRate     = errors.New("invalid stored rate")
)

// A currency is flagged volatile when its coefficient of variation crosses
// this threshold.
const stableVolatilityThreshold = 0.1

// volatilityWindow is the number of historical snapshots used to recompute a
// currency's coefficient of variation.
const volatilityWindow = 30

const conversionCacheTTL = 30 * time.Second

type rateStore interface {
	Upsert(ctx context.Context, rate *db.CurrencyRate) error
	UpsertMissing(ctx context.Context, rate *db.CurrencyRate) error
	Get(ctx context.Context, code string) (*db.CurrencyRate, error)
	List(ctx context.Context) ([]*db.CurrencyRate, error)
	UpdateVolatility(ctx context.Context, code string, volatility float64, isStable bool) error
}

type snapshotStore interface {
	Append(ctx context.Context, snapshot *db.PriceHistorySnapshot) error
	ListRecent(ctx context.Context, subjectID string, limit int) ([]*db.PriceHistorySnapshot, error)
}

type Ledger struct {
	rates         rateStore
	snapshots     snapshotStore
	fiatProviders []*RateProvider
	crypto        *CryptoProvider
	cacheProvider cache.Provider
	logger        *slog.Logger
}

func NewLedger(rates rateStore, snapshots snapshotStore, fiatProviders []*RateProvider, crypto *CryptoProvider, cacheProvider cache.Provider, logger *slog.Logger) *Ledger {
	return &Ledger{
		rates:         rates,
		snapshots:     snapshots,
		fiatProviders: fiatProviders,
		crypto:        crypto,
		cacheProvider: cacheProvider,
		logger:        logger,
	}
}

func (l *Ledger) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, l.logger)
}

// Conversion is the result of converting an amount between two currencies.
type Conversion struct {
	ConvertedAmount float64 `json:"converted_amount"`
	Rate            float64 `json:"rate"`
	IsVolatile      bool    `json:"is_volatile"`
}

// Convert converts amount between two configured currencies through a USD
// pivot and rounds to 2 decimal places. The pair's rate is cached briefly;
// rates are read-mostly so a slightly stale rate is acceptable.
func (l *Ledger) Convert(ctx context.Context, amount float64, fromCode, toCode string) (*Conversion, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	// Normalize once so "usd" and "USD" share one cache entry.
	pair, err := l.pairRate(ctx, normalizeCode(fromCode), normalizeCode(toCode))
	if err != nil {
		return nil, err
	}

	return &Conversion{
		ConvertedAmount: round2(amount * pair.Rate),
		Rate:            pair.Rate,
		IsVolatile:      pair.IsVolatile,
	}, nil
}

type pairRate struct {
	Rate       float64 `json:"rate"`
	IsVolatile bool    `json:"is_volatile"`
}

func (l *Ledger) pairRate(ctx context.Context, fromCode, toCode string) (*pairRate, error) {
	key := cache.ConversionKey(fromCode, toCode)
	if l.cacheProvider != nil {
		if cached, err := l.cacheProvider.Get(ctx, key); err == nil {
			var pair pairRate
			if err := json.Unmarshal([]byte(cached), &pair); err == nil {
				return &pair, nil
			}
		}
	}

	from, err := l.lookupRate(ctx, fromCode)
	if err != nil {
		return nil, err
	}
	to, err := l.lookupRate(ctx, toCode)
	if err != nil {
		return nil, err
	}
	if from.RateToUSD <= 0 {
		return nil, fmt.Errorf("%w: %s has rate %v", ErrInvalidRate, from.Code, from.RateToUSD)
	}

	pair := &pairRate{
		Rate:       to.RateToUSD / from.RateToUSD,
		IsVolatile: from.Volatility > stableVolatilityThreshold || to.Volatility > stableVolatilityThreshold,
	}

	if l.cacheProvider != nil {
		if encoded, err := json.Marshal(pair); err == nil {
			if err := l.cacheProvider.Set(ctx, key, string(encoded), conversionCacheTTL); err != nil {
				l.loggerFromContext(ctx).Debug("failed to cache conversion rate", "error", err, "key", key)
			}
		}
	}
	return pair, nil
}

func (l *Ledger) lookupRate(ctx context.Context, code string) (*db.CurrencyRate, error) {
	rate, err := l.rates.Get(ctx, code)
	if errors.Is(err, db.ErrRateNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	if err != nil {
		return nil, err
	}
	return rate, nil
}

// ListRates returns the full rate table.
func (l *Ledger) ListRates(ctx context.Context) ([]*db.CurrencyRate, error) {
	return l.rates.List(ctx)
}

// SeedDefaults inserts the static default rate table for currencies not yet
// configured. Existing rows are left untouched.
func (l *Ledger) SeedDefaults(ctx context.Context) error {
	for _, rate := range DefaultRates(time.Now().UTC()) {
		if err := l.rates.UpsertMissing(ctx, rate); err != nil {
			return fmt.Errorf("failed to seed rate %s: %w", rate.Code, err)
		}
	}
	return nil
}

// RefreshRates pulls fresh rates: fiat providers are tried in priority order
// and the first successful response wins; crypto prices come from a separate
// provider. Provider failure is not an error to the caller: last-known rates
// stay in place and the failure is logged.
func (l *Ledger) RefreshRates(ctx context.Context) error {
	logger := l.loggerFromContext(ctx)

	configured, err := l.rates.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list configured currencies: %w", err)
	}
	known := make(map[string]*db.CurrencyRate, len(configured))
	for _, rate := range configured {
		known[rate.Code] = rate
	}

	if fetched, source, ok := l.fetchFiat(ctx, logger); ok {
		if err := l.applyRates(ctx, known, fetched, source); err != nil {
			return err
		}
	}

	if l.crypto != nil {
		fetched, err := l.crypto.Fetch(ctx)
		if err != nil {
			logger.Warn("crypto price refresh failed, keeping last-known rates", "error", err, "provider", l.crypto.Source())
		} else if err := l.applyRates(ctx, known, fetched, l.crypto.Source()); err != nil {
			return err
		}
	}

	return nil
}

func (l *Ledger) fetchFiat(ctx context.Context, logger *slog.Logger) (map[string]float64, string, bool) {
	for _, provider := range l.fiatProviders {
		fetched, err := provider.Fetch(ctx)
		if err != nil {
			logger.Warn("rate provider failed, trying next", "error", err, "provider", provider.Source())
			continue
		}
		return fetched, provider.Source(), true
	}
	if len(l.fiatProviders) > 0 {
		logger.Warn("all rate providers failed, keeping last-known rates")
	}
	return nil, "", false
}

// applyRates updates configured currencies present in the fetched set and
// appends a history snapshot per update. Unconfigured codes in the provider
// response are ignored.
func (l *Ledger) applyRates(ctx context.Context, known map[string]*db.CurrencyRate, fetched map[string]float64, source string) error {
	now := time.Now().UTC()
	for code, rate := range fetched {
		existing, configured := known[code]
		if !configured || rate <= 0 {
			continue
		}

		updated := *existing
		updated.RateToUSD = rate
		updated.LastUpdated = now
		if err := l.rates.Upsert(ctx, &updated); err != nil {
			return fmt.Errorf("failed to store rate %s: %w", code, err)
		}

		snapshot := &db.PriceHistorySnapshot{
			SubjectID:               code,
			Price:                   rate,
			Currency:                "USD",
			Source:                  source,
			ConversionRateAtCapture: rate,
			CapturedAt:              now,
		}
		if err := l.snapshots.Append(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to append snapshot for %s: %w", code, err)
		}
	}
	return nil
}

// RecomputeVolatility recalculates each currency's coefficient of variation
// from its most recent snapshots. Currencies with fewer than 2 samples keep
// their current volatility.
func (l *Ledger) RecomputeVolatility(ctx context.Context) error {
	logger := l.loggerFromContext(ctx)

	configured, err := l.rates.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list configured currencies: %w", err)
	}

	for _, rate := range configured {
		snapshots, err := l.snapshots.ListRecent(ctx, rate.Code, volatilityWindow)
		if err != nil {
			return fmt.Errorf("failed to load snapshots for %s: %w", rate.Code, err)
		}
		if len(snapshots) < 2 {
			continue
		}

		values := make([]float64, len(snapshots))
		for i, snapshot := range snapshots {
			values[i] = snapshot.Price
		}
		volatility, ok := coefficientOfVariation(values)
		if !ok {
			logger.Warn("skipping volatility update, zero mean rate", "currency", rate.Code)
			continue
		}

		isStable := volatility < stableVolatilityThreshold
		if err := l.rates.UpdateVolatility(ctx, rate.Code, volatility, isStable); err != nil {
			return fmt.Errorf("failed to update volatility for %s: %w", rate.Code, err)
		}
	}
	return nil
}

// coefficientOfVariation returns stddev/mean for the sample. A zero mean has
// no defined coefficient and reports ok=false.
func coefficientOfVariation(values []float64) (float64, bool) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0, false
	}

	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	stddev := math.Sqrt(sumSquares / float64(len(values)))
	return math.Abs(stddev / mean), true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
