package catalog

// Package catalog is a read-only client for the product catalog service,
// which supplies base price, currency, category, and shipping attributes.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	BasePrice          float64 `json:"base_price"`
	Currency           string  `json:"currency"`
	Category           string  `json:"category"`
	ShippingWeight     float64 `json:"shipping_weight"`
	ShippingDimensions string  `json:"shipping_dimensions"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	url := fmt.Sprintf("%s/products/%s", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d for product %s", resp.StatusCode, productID)
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("catalog returned malformed body: %w", err)
	}
	if product.ID == "" {
		product.ID = productID
	}
	if strings.TrimSpace(product.Currency) == "" {
		product.Currency = "USD"
	}
	return &product, nil
}
