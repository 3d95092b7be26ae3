// Package price fetches the SOL/USD price from the Jupiter price API.
package price

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// DefaultURL is the Jupiter v6 price endpoint for SOL.
const DefaultURL = "https://price.jup.ag/v6/price?ids=SOL"

// DefaultCacheTTL is how long a fetched price is reused.
const DefaultCacheTTL = 60 * time.Second

// ErrNoPrice is returned when the response has no usable price.
var ErrNoPrice = errors.New("price not available")

// Source provides the current SOL/USD price.
type Source interface {
	SOLPrice(ctx context.Context) (decimal.Decimal, error)
}

// Config holds price client configuration.
type Config struct {
	URL      string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client is a cached Jupiter price client.
type Client struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client

	mu        sync.Mutex
	price     decimal.Decimal
	fetchedAt time.Time
	now       func() time.Time
}

// New creates a price client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// SOLPrice returns the SOL price in USD, from cache when fresh.
func (c *Client) SOLPrice(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.price, nil
	}

	p, err := c.fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	c.price = p
	c.fetchedAt = c.now()
	return p, nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ParseSOLPrice(body)
}

// ParseSOLPrice extracts data.SOL.price from a Jupiter price response.
func ParseSOLPrice(body []byte) (decimal.Decimal, error) {
	v := gjson.GetBytes(body, "data.SOL.price")
	if !v.Exists() {
		return decimal.Zero, ErrNoPrice
	}

	// Raw keeps the full precision of the JSON number.
	p, err := decimal.NewFromString(strings.Trim(v.Raw, `"`))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return p, nil
}

// ToUSD values lamports at price, rounded to cents.
func ToUSD(lamports uint64, price decimal.Decimal) decimal.Decimal {
	return helpers.ToUIAmount(lamports, helpers.SOLDecimals).Mul(price).Round(2)
}
