package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultPublicBaseURL = "https://api.coingecko.com/api/v3"
	DefaultProBaseURL    = "https://pro-api.coingecko.com/api/v3"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 1 * time.Second
	DefaultMaxDelay      = 10 * time.Second
	DefaultBackoffMult   = 2.0
)

const proAPIKeyHeader = "x-cg-pro-api-key"

// CoinGecko implements Source against the CoinGecko REST API.
//
// The client starts on the public root. When a response body tells it the
// key belongs on the pro root and a key is configured, it switches to the
// pro root once for the rest of its lifetime and retries the request.
type CoinGecko struct {
	publicBase  string
	proBase     string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64

	mu     sync.RWMutex
	base   string
	usePro bool
}

// CoinGeckoOption configures CoinGecko.
type CoinGeckoOption func(*CoinGecko)

// WithAPIKey sets the pro API key. Without a key the pro-root fallback is
// disabled.
func WithAPIKey(key string) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the public API root.
func WithBaseURL(url string) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.publicBase = url
	}
}

// WithProBaseURL overrides the pro API root.
func WithProBaseURL(url string) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.proBase = url
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) CoinGeckoOption {
	return func(c *CoinGecko) {
		c.client = client
	}
}

// NewCoinGecko creates a CoinGecko client.
func NewCoinGecko(opts ...CoinGeckoOption) *CoinGecko {
	c := &CoinGecko{
		publicBase:  DefaultPublicBaseURL,
		proBase:     DefaultProBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.base = c.publicBase
	return c
}

func (c *CoinGecko) currentBase() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base, c.usePro
}

func (c *CoinGecko) switchToPro() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.proBase
	c.usePro = true
}

// get performs one GET with retries, exponential backoff, and the one-shot
// pro-root fallback. Transport errors and 429s are retried; other non-OK
// statuses surface as StatusError.
func (c *CoinGecko) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		base, usePro := c.currentBase()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if usePro && c.apiKey != "" {
			req.Header.Set(proAPIKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{Code: resp.StatusCode, Detail: "rate limited"}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			detail := errorDetail(body)
			if c.shouldSwitchToPro(detail) {
				c.switchToPro()
				// Retry immediately on the pro root; does not consume a
				// backoff attempt.
				attempt--
				continue
			}
			return &StatusError{Code: resp.StatusCode, Detail: detail}
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// shouldSwitchToPro checks an error body for the provider's hint that the
// configured key belongs on the pro root.
func (c *CoinGecko) shouldSwitchToPro(detail string) bool {
	if c.apiKey == "" {
		return false
	}
	if _, usePro := c.currentBase(); usePro {
		return false
	}
	return strings.Contains(strings.ToLower(detail), "pro-api.coingecko.com")
}

// errorDetail prefers the provider's structured error message over the raw
// body.
func errorDetail(body []byte) string {
	var parsed struct {
		Error  string `json:"error"`
		Status struct {
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Status.ErrorMessage != "" {
			return parsed.Status.ErrorMessage
		}
	}
	return string(body)
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// MarketChart fetches the price history for the last `days` days.
func (c *CoinGecko) MarketChart(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	path := fmt.Sprintf("/coins/%s/market_chart?vs_currency=usd&days=%d", assetID, days)

	start := time.Now()
	var result marketChartResponse
	err := c.get(ctx, path, &result)
	observability.RecordAPILatency("market_chart", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if len(result.Prices) == 0 {
		return nil, fmt.Errorf("%w: empty market chart for %s", ErrNoData, assetID)
	}

	points := make([]domain.PricePoint, len(result.Prices))
	for i, p := range result.Prices {
		points[i] = domain.PricePoint{TimestampMs: int64(p[0]), Price: p[1]}
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points, nil
}

// LatestPrice fetches the current spot price.
func (c *CoinGecko) LatestPrice(ctx context.Context, assetID string) (float64, error) {
	path := fmt.Sprintf("/simple/price?ids=%s&vs_currencies=usd", assetID)

	start := time.Now()
	var result map[string]map[string]float64
	err := c.get(ctx, path, &result)
	observability.RecordAPILatency("simple_price", time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	price, ok := result[assetID]["usd"]
	if !ok {
		return 0, fmt.Errorf("%w: no spot price for %s", ErrNoData, assetID)
	}
	return price, nil
}

type coinResponse struct {
	MarketCapRank *int `json:"market_cap_rank"`
	MarketData    *struct {
		MarketCap struct {
			USD *float64 `json:"usd"`
		} `json:"market_cap"`
		TotalVolume struct {
			USD *float64 `json:"usd"`
		} `json:"total_volume"`
		Change24h *float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// Fundamentals fetches the fundamentals snapshot. Every field is optional;
// an asset without market data yields an empty (not nil) snapshot.
func (c *CoinGecko) Fundamentals(ctx context.Context, assetID string) (*domain.Fundamentals, error) {
	path := fmt.Sprintf("/coins/%s?localization=false&tickers=false&market_data=true", assetID)

	start := time.Now()
	var result coinResponse
	err := c.get(ctx, path, &result)
	observability.RecordAPILatency("coin_detail", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	f := &domain.Fundamentals{MarketCapRank: result.MarketCapRank}
	if result.MarketData != nil {
		f.MarketCap = result.MarketData.MarketCap.USD
		f.Volume24h = result.MarketData.TotalVolume.USD
		f.Change24hPct = result.MarketData.Change24h
	}
	return f, nil
}

var _ Source = (*CoinGecko)(nil)
