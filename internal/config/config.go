package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	CatalogBaseURL   string `env:"CATALOG_BASE_URL,required" validate:"required,url"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`

	RateProviderURLs  []string      `env:"RATE_PROVIDER_URLS" envSeparator:"," envDefault:"https://api.exchangerate-api.com/v4/latest/USD,https://open.er-api.com/v6/latest/USD"`
	CryptoProviderURL string        `env:"CRYPTO_PROVIDER_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price?ids=bitcoin,ethereum,tether&vs_currencies=usd" validate:"required,url"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	ShippingZonesFile  string `env:"SHIPPING_ZONES_FILE"`
	MarginPoliciesFile string `env:"MARGIN_POLICIES_FILE"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if len(c.RateProviderURLs) == 0 {
		return fmt.Errorf("at least one rate provider URL is required")
	}
	for _, raw := range c.RateProviderURLs {
		trimmed := strings.TrimSpace(raw)
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("rate provider URL must be absolute: %q", raw)
		}
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}

	return nil
}

// ProviderHosts lists the hostnames of all outbound HTTP dependencies, used for
// trace propagation targets.
func (c *Config) ProviderHosts() []string {
	hosts := make([]string, 0, len(c.RateProviderURLs)+2)
	seen := make(map[string]bool)
	add := func(raw string) {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Host == "" {
			return
		}
		if !seen[parsed.Host] {
			seen[parsed.Host] = true
			hosts = append(hosts, parsed.Host)
		}
	}
	for _, raw := range c.RateProviderURLs {
		add(raw)
	}
	add(c.CryptoProviderURL)
	add(c.CatalogBaseURL)
	return hosts
}
