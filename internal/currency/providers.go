package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RateProvider fetches fiat exchange rates quoted against USD from a single
// upstream endpoint returning {"rates": {"AED": 3.67, ...}}.
type RateProvider struct {
	url    string
	client *http.Client
}

func NewRateProvider(rawURL string, client *http.Client) *RateProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &RateProvider{url: rawURL, client: client}
}

// Source identifies the provider in snapshots and logs.
func (p *RateProvider) Source() string {
	if parsed, err := url.Parse(p.url); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return p.url
}

func (p *RateProvider) Fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider %s returned status %d", p.Source(), resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("rate provider %s returned malformed body: %w", p.Source(), err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate provider %s returned no rates", p.Source())
	}
	return payload.Rates, nil
}

// CryptoProvider fetches coin prices in USD from an endpoint returning
// {"bitcoin": {"usd": 43000.0}, ...}. Stored rates are 1/usd so crypto and
// fiat currencies share the rate-to-USD representation.
type CryptoProvider struct {
	url    string
	client *http.Client
	coins  map[string]string
}

// DefaultCoinIDs maps provider coin ids to currency codes.
var DefaultCoinIDs = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
	"tether":   "USDT",
}

func NewCryptoProvider(rawURL string, client *http.Client, coins map[string]string) *CryptoProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if coins == nil {
		coins = DefaultCoinIDs
	}
	return &CryptoProvider{url: rawURL, client: client, coins: coins}
}

func (p *CryptoProvider) Source() string {
	if parsed, err := url.Parse(p.url); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return p.url
}

// Fetch returns rate-to-USD values keyed by currency code. Coins with a zero
// or missing USD price are skipped rather than stored as a divide-by-zero.
func (p *CryptoProvider) Fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crypto provider %s returned status %d", p.Source(), resp.StatusCode)
	}

	var payload map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("crypto provider %s returned malformed body: %w", p.Source(), err)
	}

	rates := make(map[string]float64)
	for coinID, price := range payload {
		code, known := p.coins[coinID]
		if !known || price.USD <= 0 {
			continue
		}
		rates[code] = 1 / price.USD
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("crypto provider %s returned no usable prices", p.Source())
	}
	return rates, nil
}
