package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"cryptotracker/internal/logger"
	"cryptotracker/internal/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// Client wraps the shared Redis connection. Every Redis-backed component
// (response cache, market cache, sessions, notifier, throttle) is built on it.
type Client struct {
	rdb      *redis.Client
	instance string
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Instance string
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return New(rdb, opts.Instance), nil
}

func New(rdb *redis.Client, instance string) *Client {
	return &Client{rdb: rdb, instance: instance}
}

func (c *Client) Close() error { return c.rdb.Close() }

// GetCache returns "" on a miss.
func (c *Client) GetCache(ctx context.Context, key, endpoint string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		cacheMissesTotal.WithLabelValues(endpoint, c.instance).Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cacheHitsTotal.WithLabelValues(endpoint, c.instance).Inc()
	return val, nil
}

func (c *Client) SetCache(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every key starting with prefix. Failures are
// logged, not returned.
func (c *Client) InvalidateByPrefix(ctx context.Context, prefix, endpoint string) int {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "InvalidateByPrefix")
	defer span.End()

	keys, err := c.keysWithPrefix(ctx, prefix)
	if err != nil {
		logger.Log.Error("Failed to get cache keys for invalidation",
			zap.String("prefix", prefix),
			zap.String("endpoint", endpoint),
			zap.String("instance", c.instance),
			zap.Error(err),
		)
		return 0
	}

	invalidated := 0
	for _, key := range keys {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate cache key",
				zap.String("key", key),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			continue
		}
		invalidated++
	}

	logger.Log.Info("Cache invalidation completed",
		zap.String("prefix", prefix),
		zap.String("endpoint", endpoint),
		zap.String("instance", c.instance),
		zap.Int("invalidated_keys", invalidated),
	)
	return invalidated
}

func (c *Client) keysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		found, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, found...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// GenerateCacheKey derives a stable key from the query parameters, so
// ?a=1&b=2 and ?b=2&a=1 share an entry.
func GenerateCacheKey(prefix string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(params[k], ",")))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return prefix + hex.EncodeToString(hash[:8])
}
