package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:           "postgres://localhost:5432/pricing",
		CatalogBaseURL:        "https://catalog.internal.example.com",
		RateProviderURLs:      []string{"https://api.exchangerate-api.com/v4/latest/USD"},
		CryptoProviderURL:     "https://api.coingecko.com/api/v3/simple/price",
		ProviderTimeout:       10 * time.Second,
		CacheProvider:         "memory",
		RedisConnectionString: "redis://localhost:6379/0",
		LogFormat:             "text",
		Port:                  "8080",
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateCacheProvider(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CacheProvider = "memcached"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CacheProvider") || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateLogFormat(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.LogFormat = "xml"

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestValidateRateProviderURLs(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RateProviderURLs = nil
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for empty provider list")
	}

	cfg = validConfig()
	cfg.RateProviderURLs = []string{"not a url"}
	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error for relative provider URL")
	}
	if !strings.Contains(err.Error(), "must be absolute") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateProviderTimeout(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.ProviderTimeout = 0

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "PROVIDER_TIMEOUT") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProviderHosts(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RateProviderURLs = []string{
		"https://api.exchangerate-api.com/v4/latest/USD",
		"https://open.er-api.com/v6/latest/USD",
		"https://api.exchangerate-api.com/v4/latest/EUR", // same host, deduplicated
	}

	hosts := cfg.ProviderHosts()
	want := []string{
		"api.exchangerate-api.com",
		"open.er-api.com",
		"api.coingecko.com",
		"catalog.internal.example.com",
	}
	if len(hosts) != len(want) {
		t.Fatalf("got %d hosts %v, want %d", len(hosts), hosts, len(want))
	}
	for i, host := range want {
		if hosts[i] != host {
			t.Fatalf("hosts[%d] = %q, want %q", i, hosts[i], host)
		}
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/pricing")
	t.Setenv("CATALOG_BASE_URL", "https://catalog.internal.example.com")
	t.Setenv("RATE_PROVIDER_URLS", "https://rates-a.example.com/latest,https://rates-b.example.com/latest")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.RateProviderURLs) != 2 {
		t.Fatalf("got %d provider URLs, want 2", len(cfg.RateProviderURLs))
	}
	if cfg.LogFormat != "json" || cfg.Port != "9090" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.CacheProvider != "memory" {
		t.Fatalf("cache provider = %q, want memory default", cfg.CacheProvider)
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Fatalf("provider timeout = %v, want 10s default", cfg.ProviderTimeout)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CATALOG_BASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required variables")
	}
}
