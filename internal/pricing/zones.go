package pricing

// Shipping zone and method configuration. Zones are static configuration
// loaded from yaml (or built-in defaults), validated so no country belongs to
// more than one zone.

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Zone struct {
	ID                    string   `yaml:"id" json:"id"`
	Countries             []string `yaml:"countries" json:"countries"`
	Currency              string   `yaml:"currency" json:"currency"`
	BaseFee               float64  `yaml:"base_fee" json:"base_fee"`
	PerKgFee              float64  `yaml:"per_kg_fee" json:"per_kg_fee"`
	FreeShippingThreshold float64  `yaml:"free_shipping_threshold" json:"free_shipping_threshold"`
	DeliveryDaysMin       int      `yaml:"delivery_days_min" json:"delivery_days_min"`
	DeliveryDaysMax       int      `yaml:"delivery_days_max" json:"delivery_days_max"`
	Default               bool     `yaml:"default" json:"default"`
}

type Method struct {
	ID                   string  `yaml:"id" json:"id"`
	Name                 string  `yaml:"name" json:"name"`
	Currency             string  `yaml:"currency" json:"currency"`
	RateMultiplier       float64 `yaml:"rate_multiplier" json:"rate_multiplier"`
	FreeShippingEligible bool    `yaml:"free_shipping_eligible" json:"free_shipping_eligible"`
	MinOrderValue        float64 `yaml:"min_order_value" json:"min_order_value"`
	DaysMinDelta         int     `yaml:"days_min_delta" json:"days_min_delta"`
	DaysMaxDelta         int     `yaml:"days_max_delta" json:"days_max_delta"`
}

type ZoneConfig struct {
	Zones   []Zone   `yaml:"zones"`
	Methods []Method `yaml:"methods"`
}

// DefaultZoneConfig is the built-in Gulf-centric zone table used when no
// config file is supplied.
func DefaultZoneConfig() *ZoneConfig {
	return &ZoneConfig{
		Zones: []Zone{
			{
				ID:                    "gcc",
				Countries:             []string{"AE", "SA", "QA", "KW", "BH", "OM"},
				Currency:              "USD",
				BaseFee:               15,
				PerKgFee:              5,
				FreeShippingThreshold: 100,
				DeliveryDaysMin:       3,
				DeliveryDaysMax:       7,
			},
			{
				ID:                    "middle_east",
				Countries:             []string{"EG", "JO", "LB", "IQ", "YE"},
				Currency:              "USD",
				BaseFee:               20,
				PerKgFee:              7,
				FreeShippingThreshold: 150,
				DeliveryDaysMin:       5,
				DeliveryDaysMax:       12,
			},
			{
				ID:                    "international",
				Countries:             []string{},
				Currency:              "USD",
				BaseFee:               25,
				PerKgFee:              10,
				FreeShippingThreshold: 200,
				DeliveryDaysMin:       7,
				DeliveryDaysMax:       21,
				Default:               true,
			},
		},
		Methods: []Method{
			{
				ID:                   "standard",
				Name:                 "Standard Shipping",
				Currency:             "USD",
				RateMultiplier:       1.0,
				FreeShippingEligible: true,
			},
			{
				ID:             "express",
				Name:           "Express Shipping",
				Currency:       "USD",
				RateMultiplier: 1.75,
				DaysMinDelta:   -2,
				DaysMaxDelta:   -3,
			},
			{
				ID:                   "economy",
				Name:                 "Economy Shipping",
				Currency:             "USD",
				RateMultiplier:       0.8,
				FreeShippingEligible: true,
				DaysMinDelta:         3,
				DaysMaxDelta:         7,
			},
		},
	}
}

// LoadZoneConfig reads zone configuration from a yaml file, or returns the
// built-in defaults when path is empty.
func LoadZoneConfig(path string) (*ZoneConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultZoneConfig(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone config: %w", err)
	}

	var cfg ZoneConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse zone config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects ambiguous configuration: overlapping country sets, missing
// default zone, and nonsensical fees. Overlap is rejected at load time rather
// than resolved by match order.
func (c *ZoneConfig) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("at least one zone is required")
	}
	if len(c.Methods) == 0 {
		return fmt.Errorf("at least one shipping method is required")
	}

	defaultCount := 0
	claimed := make(map[string]string)
	zoneIDs := make(map[string]bool)
	for _, zone := range c.Zones {
		if strings.TrimSpace(zone.ID) == "" {
			return fmt.Errorf("zone id is required")
		}
		if zoneIDs[zone.ID] {
			return fmt.Errorf("duplicate zone id: %s", zone.ID)
		}
		zoneIDs[zone.ID] = true

		if zone.Default {
			defaultCount++
		}
		if zone.BaseFee < 0 || zone.PerKgFee < 0 || zone.FreeShippingThreshold < 0 {
			return fmt.Errorf("zone %s: fees must be zero or positive", zone.ID)
		}
		if zone.DeliveryDaysMin <= 0 || zone.DeliveryDaysMax < zone.DeliveryDaysMin {
			return fmt.Errorf("zone %s: invalid delivery day range", zone.ID)
		}
		if strings.TrimSpace(zone.Currency) == "" {
			return fmt.Errorf("zone %s: currency is required", zone.ID)
		}

		for _, country := range zone.Countries {
			code := normalizeCountry(country)
			if other, taken := claimed[code]; taken {
				return fmt.Errorf("country %s belongs to both zones %s and %s", code, other, zone.ID)
			}
			claimed[code] = zone.ID
		}
	}
	if defaultCount != 1 {
		return fmt.Errorf("exactly one default zone is required, found %d", defaultCount)
	}

	methodIDs := make(map[string]bool)
	for _, method := range c.Methods {
		if strings.TrimSpace(method.ID) == "" {
			return fmt.Errorf("method id is required")
		}
		if methodIDs[method.ID] {
			return fmt.Errorf("duplicate method id: %s", method.ID)
		}
		methodIDs[method.ID] = true
		if method.RateMultiplier <= 0 {
			return fmt.Errorf("method %s: rate multiplier must be positive", method.ID)
		}
		if strings.TrimSpace(method.Currency) == "" {
			return fmt.Errorf("method %s: currency is required", method.ID)
		}
	}

	return nil
}

// ZoneFor returns the zone containing the destination country, or the default
// zone when no zone claims it.
func (c *ZoneConfig) ZoneFor(country string) *Zone {
	code := normalizeCountry(country)
	var fallback *Zone
	for i := range c.Zones {
		zone := &c.Zones[i]
		if zone.Default {
			fallback = zone
		}
		for _, claimed := range zone.Countries {
			if normalizeCountry(claimed) == code {
				return zone
			}
		}
	}
	return fallback
}

func (c *ZoneConfig) MethodByID(id string) *Method {
	normalized := strings.ToLower(strings.TrimSpace(id))
	for i := range c.Methods {
		if c.Methods[i].ID == normalized {
			return &c.Methods[i]
		}
	}
	return nil
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}
