package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketalerts/internal/logger"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal, cacheMissesTotal)
}

// ResponseCache stores rendered API responses with short TTLs.
type ResponseCache struct {
	client   *redis.Client
	instance string
}

func NewResponseCache(client *redis.Client, instance string) *ResponseCache {
	return &ResponseCache{client: client, instance: instance}
}

func (c *ResponseCache) Get(ctx context.Context, key, endpoint string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		cacheMissesTotal.WithLabelValues(endpoint, c.instance).Inc()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cacheHitsTotal.WithLabelValues(endpoint, c.instance).Inc()
	return value, nil
}

func (c *ResponseCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every cached response under a prefix.
func (c *ResponseCache) InvalidateByPrefix(ctx context.Context, prefix string) {
	keys, err := c.scanKeys(ctx, prefix)
	if err != nil {
		logger.Log.Error("failed to scan cache keys for invalidation",
			zap.String("prefix", prefix),
			zap.Error(err),
		)
		return
	}

	invalidated := 0
	for _, key := range keys {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			logger.Log.Warn("failed to invalidate cache key",
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		invalidated++
	}

	if invalidated > 0 {
		logger.Log.Info("cache invalidation completed",
			zap.String("prefix", prefix),
			zap.Int("invalidated_keys", invalidated),
		)
	}
}

func (c *ResponseCache) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		found, next, err := c.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
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
