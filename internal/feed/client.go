package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
	maxBodyBytes   = 8 << 20
)

var (
	feedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Total number of price API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)
	feedRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "Latency of price API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(feedRequestsTotal)
	prometheus.MustRegister(feedRequestDuration)
}

type ClientConfig struct {
	BaseURL           string
	APIKey            string
	PerPage           int
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client talks to the CoinGecko REST API. It does not retry: a failed call
// is reported to the caller, who decides when to try again.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	perPage    int
	limiter    *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		perPage:    cfg.PerPage,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// FetchMarketSnapshot returns the top coins by market cap with their 7 day
// sparkline.
func (c *Client) FetchMarketSnapshot(ctx context.Context) ([]models.CoinSnapshot, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "24h")

	var coins []models.CoinSnapshot
	if err := c.get(ctx, "markets", "/coins/markets?"+q.Encode(), &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// FetchGlobalStats returns aggregate market totals.
func (c *Client) FetchGlobalStats(ctx context.Context) (models.GlobalStats, error) {
	var resp struct {
		Data *models.GlobalStats `json:"data"`
	}
	if err := c.get(ctx, "global", "/global", &resp); err != nil {
		return models.GlobalStats{}, err
	}
	if resp.Data == nil {
		return models.GlobalStats{}, failure.Network(fmt.Errorf("global: invalid data format received"))
	}
	return *resp.Data, nil
}

// FetchTrending returns the coins currently trending in searches.
func (c *Client) FetchTrending(ctx context.Context) ([]models.TrendingCoin, error) {
	var resp struct {
		Coins []struct {
			Item models.TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "trending", "/search/trending", &resp); err != nil {
		return nil, err
	}

	out := make([]models.TrendingCoin, 0, len(resp.Coins))
	for _, c := range resp.Coins {
		out = append(out, c.Item)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return failure.Network(fmt.Errorf("%s: rate limit wait: %w", endpoint, err))
	}

	start := time.Now()
	defer func() {
		feedRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return failure.Network(fmt.Errorf("%s: create request: %w", endpoint, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		feedRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return failure.Network(fmt.Errorf("%s: request failed: %w", endpoint, err))
	}
	defer resp.Body.Close()

	feedRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Log.Warn("Price API returned non-OK status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return failure.Network(fmt.Errorf("%s: status %d", endpoint, resp.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return failure.Network(fmt.Errorf("%s: decode response: %w", endpoint, err))
	}
	return nil
}
