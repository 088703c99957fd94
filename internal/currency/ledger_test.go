package currency

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/souqflowapp/souqflow/internal/cache"
	"github.com/souqflowapp/souqflow/internal/db"
)

type fakeRateStore struct {
	mu    sync.Mutex
	rates map[string]*db.CurrencyRate
}

func newFakeRateStore(rates ...*db.CurrencyRate) *fakeRateStore {
	store := &fakeRateStore{rates: make(map[string]*db.CurrencyRate)}
	for _, rate := range rates {
		copied := *rate
		store.rates[strings.ToUpper(rate.Code)] = &copied
	}
	return store
}

func (s *fakeRateStore) Upsert(_ context.Context, rate *db.CurrencyRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rate
	copied.Code = strings.ToUpper(rate.Code)
	s.rates[copied.Code] = &copied
	return nil
}

func (s *fakeRateStore) UpsertMissing(_ context.Context, rate *db.CurrencyRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.ToUpper(rate.Code)
	if _, exists := s.rates[code]; exists {
		return nil
	}
	copied := *rate
	copied.Code = code
	s.rates[code] = &copied
	return nil
}

func (s *fakeRateStore) Get(_ context.Context, code string) (*db.CurrencyRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate, exists := s.rates[strings.ToUpper(strings.TrimSpace(code))]
	if !exists {
		return nil, db.ErrRateNotFound
	}
	copied := *rate
	return &copied, nil
}

func (s *fakeRateStore) List(_ context.Context) ([]*db.CurrencyRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rates := make([]*db.CurrencyRate, 0, len(s.rates))
	for _, rate := range s.rates {
		copied := *rate
		rates = append(rates, &copied)
	}
	return rates, nil
}

func (s *fakeRateStore) UpdateVolatility(_ context.Context, code string, volatility float64, isStable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate, exists := s.rates[strings.ToUpper(code)]
	if !exists {
		return db.ErrRateNotFound
	}
	rate.Volatility = volatility
	rate.IsStable = isStable
	return nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string][]*db.PriceHistorySnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string][]*db.PriceHistorySnapshot)}
}

func (s *fakeSnapshotStore) Append(_ context.Context, snapshot *db.PriceHistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snapshot
	// Newest first, matching the store's ListRecent ordering.
	s.snapshots[snapshot.SubjectID] = append([]*db.PriceHistorySnapshot{&copied}, s.snapshots[snapshot.SubjectID]...)
	return nil
}

func (s *fakeSnapshotStore) ListRecent(_ context.Context, subjectID string, limit int) ([]*db.PriceHistorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshots := s.snapshots[subjectID]
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}
	out := make([]*db.PriceHistorySnapshot, len(snapshots))
	copy(out, snapshots)
	return out, nil
}

func testRates() []*db.CurrencyRate {
	now := time.Now().UTC()
	return []*db.CurrencyRate{
		{Code: "USD", RateToUSD: 1.0, Volatility: 0.01, IsStable: true, LastUpdated: now},
		{Code: "AED", RateToUSD: 3.67, Volatility: 0.02, IsStable: true, LastUpdated: now},
		{Code: "EUR", RateToUSD: 0.92, Volatility: 0.03, IsStable: true, LastUpdated: now},
		{Code: "BTC", RateToUSD: 0.000023, Volatility: 0.65, IsStable: false, LastUpdated: now},
	}
}

func newTestLedger(t *testing.T, rates *fakeRateStore, snapshots *fakeSnapshotStore) *Ledger {
	t.Helper()
	if rates == nil {
		rates = newFakeRateStore(testRates()...)
	}
	if snapshots == nil {
		snapshots = newFakeSnapshotStore()
	}
	return NewLedger(rates, snapshots, nil, nil, nil, nil)
}

func TestConvertUSDToAED(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)

	conversion, err := ledger.Convert(context.Background(), 100, "USD", "AED")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if conversion.ConvertedAmount != 367 {
		t.Fatalf("converted = %v, want 367.00", conversion.ConvertedAmount)
	}
	if conversion.Rate != 3.67 {
		t.Fatalf("rate = %v, want 3.67", conversion.Rate)
	}
	if conversion.IsVolatile {
		t.Fatal("USD/AED pair must not be volatile")
	}
}

func TestConvertNormalizesCodesForCache(t *testing.T) {
	t.Parallel()

	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	ledger := NewLedger(newFakeRateStore(testRates()...), newFakeSnapshotStore(), nil, nil, cacheProvider, nil)
	ctx := context.Background()

	lower, err := ledger.Convert(ctx, 100, " usd ", "aed")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if lower.ConvertedAmount != 367 {
		t.Fatalf("converted = %v, want 367.00", lower.ConvertedAmount)
	}

	// The pair is cached under the canonical key only; code casing must not
	// fan out into separate entries.
	if _, err := cacheProvider.Get(ctx, cache.ConversionKey("USD", "AED")); err != nil {
		t.Fatalf("canonical cache key missing: %v", err)
	}
	if _, err := cacheProvider.Get(ctx, cache.ConversionKey(" usd ", "aed")); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("got %v for raw-code key, want ErrNotFound", err)
	}

	upper, err := ledger.Convert(ctx, 100, "USD", "AED")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if upper.ConvertedAmount != lower.ConvertedAmount {
		t.Fatalf("case-variant conversions diverged: %v vs %v", lower.ConvertedAmount, upper.ConvertedAmount)
	}
}

func TestConvertPivotsThroughUSD(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)

	conversion, err := ledger.Convert(context.Background(), 100, "AED", "EUR")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := math.Round(100*(0.92/3.67)*100) / 100
	if conversion.ConvertedAmount != want {
		t.Fatalf("converted = %v, want %v", conversion.ConvertedAmount, want)
	}
}

func TestConvertRoundTripStaysClose(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)
	ctx := context.Background()

	there, err := ledger.Convert(ctx, 250, "USD", "EUR")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	back, err := ledger.Convert(ctx, there.ConvertedAmount, "EUR", "USD")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	// Two 2-decimal roundings can drift by at most a cent on each leg.
	if math.Abs(back.ConvertedAmount-250) > 0.02 {
		t.Fatalf("round trip 250 -> %v -> %v drifted too far", there.ConvertedAmount, back.ConvertedAmount)
	}
}

func TestConvertVolatileFlag(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)

	conversion, err := ledger.Convert(context.Background(), 1, "USD", "BTC")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !conversion.IsVolatile {
		t.Fatal("conversion involving BTC must be flagged volatile")
	}
}

func TestConvertUnknownCurrency(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)

	if _, err := ledger.Convert(context.Background(), 1, "USD", "XYZ"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("got %v, want ErrUnknownCurrency", err)
	}
	if _, err := ledger.Convert(context.Background(), 1, "XYZ", "USD"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("got %v, want ErrUnknownCurrency", err)
	}
}

func TestConvertInvalidAmount(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, nil, nil)

	for _, amount := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := ledger.Convert(context.Background(), amount, "USD", "AED"); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %v: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestConvertZeroStoredRate(t *testing.T) {
	t.Parallel()

	rates := newFakeRateStore(
		&db.CurrencyRate{Code: "USD", RateToUSD: 1},
		&db.CurrencyRate{Code: "BAD", RateToUSD: 0},
	)
	ledger := newTestLedger(t, rates, nil)

	if _, err := ledger.Convert(context.Background(), 1, "BAD", "USD"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("got %v, want ErrInvalidRate", err)
	}
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	t.Parallel()

	rates := newFakeRateStore()
	ledger := newTestLedger(t, rates, nil)
	ctx := context.Background()

	if err := ledger.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	usd, err := rates.Get(ctx, "USD")
	if err != nil {
		t.Fatalf("USD not seeded: %v", err)
	}
	if usd.RateToUSD != 1.0 {
		t.Fatalf("USD rate = %v, want 1.0", usd.RateToUSD)
	}

	// A refreshed rate survives re-seeding.
	aed, _ := rates.Get(ctx, "AED")
	aed.RateToUSD = 3.68
	if err := rates.Upsert(ctx, aed); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := ledger.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	aed, _ = rates.Get(ctx, "AED")
	if aed.RateToUSD != 3.68 {
		t.Fatalf("AED rate = %v, want refreshed 3.68 to survive", aed.RateToUSD)
	}
}

func TestRefreshRatesFallsBackToSecondProvider(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"AED":3.69,"JPY":150.0}}`))
	}))
	defer working.Close()

	rates := newFakeRateStore(testRates()...)
	snapshots := newFakeSnapshotStore()
	providers := []*RateProvider{
		NewRateProvider(broken.URL, broken.Client()),
		NewRateProvider(working.URL, working.Client()),
	}
	ledger := NewLedger(rates, snapshots, providers, nil, nil, nil)

	if err := ledger.RefreshRates(context.Background()); err != nil {
		t.Fatalf("RefreshRates: %v", err)
	}

	aed, err := rates.Get(context.Background(), "AED")
	if err != nil {
		t.Fatalf("Get AED: %v", err)
	}
	if aed.RateToUSD != 3.69 {
		t.Fatalf("AED rate = %v, want 3.69 from fallback provider", aed.RateToUSD)
	}

	// Unconfigured codes in the provider response are ignored.
	if _, err := rates.Get(context.Background(), "JPY"); !errors.Is(err, db.ErrRateNotFound) {
		t.Fatal("JPY must not be created by refresh")
	}

	recent, err := snapshots.ListRecent(context.Background(), "AED", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].Price != 3.69 {
		t.Fatalf("expected one AED snapshot at 3.69, got %+v", recent)
	}
}

func TestRefreshRatesAllProvidersDownKeepsLastKnown(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	rates := newFakeRateStore(testRates()...)
	providers := []*RateProvider{NewRateProvider(broken.URL, broken.Client())}
	ledger := NewLedger(rates, newFakeSnapshotStore(), providers, nil, nil, nil)

	if err := ledger.RefreshRates(context.Background()); err != nil {
		t.Fatalf("RefreshRates must not fail on provider outage: %v", err)
	}

	aed, err := rates.Get(context.Background(), "AED")
	if err != nil {
		t.Fatalf("Get AED: %v", err)
	}
	if aed.RateToUSD != 3.67 {
		t.Fatalf("AED rate = %v, want last-known 3.67", aed.RateToUSD)
	}
}

func TestRecomputeVolatility(t *testing.T) {
	t.Parallel()

	rates := newFakeRateStore(
		&db.CurrencyRate{Code: "STEADY", RateToUSD: 1, Volatility: 0.5, IsStable: false},
		&db.CurrencyRate{Code: "JUMPY", RateToUSD: 1, Volatility: 0.01, IsStable: true},
		&db.CurrencyRate{Code: "FRESH", RateToUSD: 1, Volatility: 0.42},
	)
	snapshots := newFakeSnapshotStore()
	ctx := context.Background()
	for _, price := range []float64{1.00, 1.01, 0.99, 1.00} {
		_ = snapshots.Append(ctx, &db.PriceHistorySnapshot{SubjectID: "STEADY", Price: price})
	}
	for _, price := range []float64{1.0, 2.0, 0.5, 3.0} {
		_ = snapshots.Append(ctx, &db.PriceHistorySnapshot{SubjectID: "JUMPY", Price: price})
	}
	// FRESH has a single snapshot: not enough samples to recompute.
	_ = snapshots.Append(ctx, &db.PriceHistorySnapshot{SubjectID: "FRESH", Price: 1.0})

	ledger := newTestLedger(t, rates, snapshots)
	if err := ledger.RecomputeVolatility(ctx); err != nil {
		t.Fatalf("RecomputeVolatility: %v", err)
	}

	steady, _ := rates.Get(ctx, "STEADY")
	if steady.Volatility >= stableVolatilityThreshold || !steady.IsStable {
		t.Fatalf("STEADY volatility = %v stable = %v, want low and stable", steady.Volatility, steady.IsStable)
	}

	jumpy, _ := rates.Get(ctx, "JUMPY")
	if jumpy.Volatility < stableVolatilityThreshold || jumpy.IsStable {
		t.Fatalf("JUMPY volatility = %v stable = %v, want high and unstable", jumpy.Volatility, jumpy.IsStable)
	}

	fresh, _ := rates.Get(ctx, "FRESH")
	if fresh.Volatility != 0.42 {
		t.Fatalf("FRESH volatility = %v, want unchanged 0.42", fresh.Volatility)
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	t.Parallel()

	// Constant series has zero variance.
	cv, ok := coefficientOfVariation([]float64{5, 5, 5})
	if !ok || cv != 0 {
		t.Fatalf("constant series: cv = %v ok = %v, want 0 true", cv, ok)
	}

	// Known sample: mean 3, population stddev sqrt(2), cv = sqrt(2)/3.
	cv, ok = coefficientOfVariation([]float64{1, 2, 3, 4, 5})
	if !ok {
		t.Fatal("expected defined coefficient")
	}
	if want := math.Sqrt(2) / 3; math.Abs(cv-want) > 1e-12 {
		t.Fatalf("cv = %v, want %v", cv, want)
	}

	// Zero mean has no defined coefficient.
	if _, ok := coefficientOfVariation([]float64{-1, 1}); ok {
		t.Fatal("zero-mean series must report ok=false")
	}
}
