// Package swap talks to the Jupiter aggregator to quote and build token swaps.
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Default Jupiter v6 endpoints.
const (
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	DefaultSwapURL  = "https://quote-api.jup.ag/v6/swap"

	DefaultSlippageBps uint16 = 50
)

var (
	ErrNoRoute         = errors.New("no swap route found")
	ErrInvalidResponse = errors.New("invalid aggregator response")
)

// Quote is a Jupiter route quote. Raw is sent back verbatim when building
// the swap transaction.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       uint64          `json:"inAmount"`
	OutAmount      uint64          `json:"outAmount"`
	OtherAmountMin uint64          `json:"otherAmountThreshold"`
	SlippageBps    uint16          `json:"slippageBps"`
	PriceImpactPct string          `json:"priceImpactPct"`
	Route          []string        `json:"route"`
	Raw            json.RawMessage `json:"-"`
}

// Provider quotes swaps and builds the unsigned transaction.
type Provider interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*Quote, error)
	SwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error)
}

// Config holds Jupiter client configuration.
type Config struct {
	QuoteURL string
	SwapURL  string
	Timeout  time.Duration
}

// Jupiter is an HTTP client for the Jupiter swap API.
type Jupiter struct {
	quoteURL   string
	swapURL    string
	httpClient *http.Client
}

// NewJupiter creates a Jupiter client.
func NewJupiter(cfg *Config) *Jupiter {
	if cfg == nil {
		cfg = &Config{}
	}
	j := &Jupiter{
		quoteURL:   cfg.QuoteURL,
		swapURL:    cfg.SwapURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if j.quoteURL == "" {
		j.quoteURL = DefaultQuoteURL
	}
	if j.swapURL == "" {
		j.swapURL = DefaultSwapURL
	}
	if j.httpClient.Timeout <= 0 {
		j.httpClient.Timeout = 30 * time.Second
	}
	return j
}

// Quote asks for the best route swapping amount base units of inputMint.
func (j *Jupiter) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps uint16) (*Quote, error) {
	if amount == 0 {
		return nil, fmt.Errorf("quote amount must be greater than zero")
	}

	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.FormatUint(uint64(slippageBps), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.quoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := j.do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return ParseQuote(body)
}

// ParseQuote decodes a quote response.
func ParseQuote(body []byte) (*Quote, error) {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, msg.String())
	}

	out := gjson.GetBytes(body, "outAmount")
	if !out.Exists() {
		return nil, fmt.Errorf("%w: missing outAmount", ErrInvalidResponse)
	}

	quote := &Quote{
		InputMint:      gjson.GetBytes(body, "inputMint").String(),
		OutputMint:     gjson.GetBytes(body, "outputMint").String(),
		InAmount:       gjson.GetBytes(body, "inAmount").Uint(),
		OutAmount:      out.Uint(),
		OtherAmountMin: gjson.GetBytes(body, "otherAmountThreshold").Uint(),
		SlippageBps:    uint16(gjson.GetBytes(body, "slippageBps").Uint()),
		PriceImpactPct: gjson.GetBytes(body, "priceImpactPct").String(),
		Raw:            append(json.RawMessage(nil), body...),
	}
	gjson.GetBytes(body, "routePlan.#.swapInfo.label").ForEach(func(_, v gjson.Result) bool {
		quote.Route = append(quote.Route, v.String())
		return true
	})

	if quote.OutAmount == 0 {
		return nil, ErrNoRoute
	}
	return quote, nil
}

// SwapTransaction returns the base64 serialized swap transaction for the
// quote, to be signed by userPublicKey. SOL is wrapped and unwrapped.
func (j *Jupiter) SwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return "", fmt.Errorf("quote is required")
	}

	payload, err := json.Marshal(struct {
		QuoteResponse    json.RawMessage `json:"quoteResponse"`
		UserPublicKey    string          `json:"userPublicKey"`
		WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
	}{quote.Raw, userPublicKey, true})
	if err != nil {
		return "", fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.swapURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := j.do(req)
	if err != nil {
		return "", fmt.Errorf("swap: %w", err)
	}

	tx := gjson.GetBytes(body, "swapTransaction")
	if !tx.Exists() || tx.String() == "" {
		return "", fmt.Errorf("%w: missing swapTransaction", ErrInvalidResponse)
	}
	return tx.String(), nil
}

func (j *Jupiter) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("jupiter returned %d: %s", resp.StatusCode, msg)
	}
	return body, nil
}

var _ Provider = (*Jupiter)(nil)
