package currency

import (
	"time"

	"github.com/souqflowapp/souqflow/internal/db"
)

// DefaultRates returns the static rate table seeded at startup. Refresh jobs
// overwrite these as soon as a provider responds.
func DefaultRates(now time.Time) []*db.CurrencyRate {
	seed := func(code, name, symbol string, rate, volatility float64) *db.CurrencyRate {
		return &db.CurrencyRate{
			Code:        code,
			DisplayName: name,
			Symbol:      symbol,
			RateToUSD:   rate,
			Volatility:  volatility,
			IsStable:    volatility < stableVolatilityThreshold,
			LastUpdated: now,
		}
	}

	return []*db.CurrencyRate{
		seed("USD", "US Dollar", "$", 1.0, 0.0),
		seed("AED", "UAE Dirham", "د.إ", 3.67, 0.01),
		seed("SAR", "Saudi Riyal", "ر.س", 3.75, 0.01),
		seed("QAR", "Qatari Riyal", "ر.ق", 3.64, 0.01),
		seed("KWD", "Kuwaiti Dinar", "د.ك", 0.31, 0.02),
		seed("BHD", "Bahraini Dinar", ".د.ب", 0.38, 0.02),
		seed("OMR", "Omani Rial", "ر.ع.", 0.38, 0.02),
		seed("EUR", "Euro", "€", 0.92, 0.05),
		seed("GBP", "British Pound", "£", 0.79, 0.05),
		seed("BTC", "Bitcoin", "₿", 0.000023, 0.65),
		seed("ETH", "Ethereum", "Ξ", 0.00035, 0.72),
		seed("USDT", "Tether", "₮", 1.0, 0.08),
	}
}
