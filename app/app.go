package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souqflowapp/souqflow/internal/bulk"
	"github.com/souqflowapp/souqflow/internal/cache"
	"github.com/souqflowapp/souqflow/internal/catalog"
	"github.com/souqflowapp/souqflow/internal/config"
	"github.com/souqflowapp/souqflow/internal/currency"
	"github.com/souqflowapp/souqflow/internal/db"
	"github.com/souqflowapp/souqflow/internal/handlers"
	"github.com/souqflowapp/souqflow/internal/notify"
	"github.com/souqflowapp/souqflow/internal/observability"
	"github.com/souqflowapp/souqflow/internal/pricing"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	httpClient := observability.NewHTTPClient(cfg.ProviderTimeout, cfg.ProviderHosts())

	fiatProviders := make([]*currency.RateProvider, 0, len(cfg.RateProviderURLs))
	for _, providerURL := range cfg.RateProviderURLs {
		fiatProviders = append(fiatProviders, currency.NewRateProvider(providerURL, httpClient))
	}
	cryptoProvider := currency.NewCryptoProvider(cfg.CryptoProviderURL, httpClient, nil)

	rateStore := db.NewRateStore(database)
	snapshotStore := db.NewSnapshotStore(database)
	tierStore := db.NewTierStore(database)
	bulkOrderStore := db.NewBulkOrderStore(database)

	ledger := currency.NewLedger(
		rateStore,
		snapshotStore,
		fiatProviders,
		cryptoProvider,
		cacheProvider,
		logger.With("component", "currency_ledger"),
	)
	if err := ledger.SeedDefaults(startupCtx); err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to seed currency rates: %w", err)
	}

	zoneConfig, err := pricing.LoadZoneConfig(cfg.ShippingZonesFile)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load shipping zones: %w", err)
	}
	marginPolicies, err := pricing.LoadMarginPolicies(cfg.MarginPoliciesFile)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load margin policies: %w", err)
	}
	marginEngine, err := pricing.NewMarginEngine(marginPolicies)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize margin engine: %w", err)
	}

	shippingCalculator := pricing.NewShippingCalculator(zoneConfig, ledger)
	calculator := pricing.NewCalculator(ledger, shippingCalculator, marginEngine, logger.With("component", "pricing_calculator"))

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, httpClient)
	notifier := notify.NewNotifier(cfg.NotifyWebhookURL, httpClient, logger.With("component", "notifier"))

	bulkManager := bulk.NewManager(
		tierStore,
		bulkOrderStore,
		catalogClient,
		notifier,
		cacheProvider,
		logger.With("component", "bulk_manager"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:     cfg,
		DB:         database,
		Ledger:     ledger,
		Shipping:   shippingCalculator,
		Calculator: calculator,
		Bulk:       bulkManager,
		Logger:     logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
