package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/beampay-service/beampay_service/internal/infrastructure/cache"
	"github.com/beampay-service/beampay_service/pkg/retry"
)

const cacheKeyBeamUSD = "pricefeed:beam_usd"

// Config represents price feed configuration
type Config struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client fetches the BEAM/USDT spot rate from the exchange ticker endpoint.
// Responses are cached in Redis so the metadata loop does not hammer the
// exchange on every pass.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      cache.RedisClient
	retrier    *retry.Retrier
	logger     *zap.Logger
}

// NewClient creates a new price feed client
func NewClient(config Config, cacheClient cache.RedisClient, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = 2
	policy.InitialBackoff = 200 * time.Millisecond

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cacheClient,
		retrier:    retry.NewRetrier(policy, logger),
		logger:     logger,
	}
}

// tickerResponse mirrors the 24hr ticker payload. Only lastPrice matters.
type tickerResponse struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// BeamUSD returns the current BEAM price in USD.
func (c *Client) BeamUSD(ctx context.Context) (float64, error) {
	if c.cache != nil {
		var cached float64
		if err := c.cache.Get(ctx, cacheKeyBeamUSD, &cached); err == nil && cached > 0 {
			return cached, nil
		}
	}

	result, err := c.retrier.DoWithResult(ctx, func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	price := result.(float64)

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKeyBeamUSD, price, c.config.CacheTTL); err != nil {
			c.logger.Warn("Failed to cache price", zap.Error(err))
		}
	}

	return price, nil
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read price feed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var ticker tickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("failed to decode price feed response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid lastPrice %q: %w", ticker.LastPrice, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price %f", price)
	}

	return price, nil
}
