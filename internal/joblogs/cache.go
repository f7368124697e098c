package joblogs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"joblog-insights/internal/common/database"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// MetricsCache keeps recent metric aggregates in Redis for a short TTL so
// the dashboard's polling does not re-run the same aggregation every few
// seconds. The cache is strictly an optimization: every method is a no-op
// when no Redis client is configured, and read/write failures degrade to a
// store query.
type MetricsCache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewMetricsCache(client *database.RedisClient, ttl time.Duration, log logger.Logger) *MetricsCache {
	return &MetricsCache{
		redis: client,
		ttl:   ttl,
		logger: log.WithFields(map[string]interface{}{
			"component": "metricsCache",
		}),
	}
}

// Get loads a cached metric result into dest. It reports whether a usable
// entry was found.
func (c *MetricsCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.redis == nil {
		return false
	}

	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("cache read failed", map[string]interface{}{
				"key": key,
			})
		}
		metrics.MetricCacheRequests.WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.WithError(err).Warn("cache entry corrupt, dropping", map[string]interface{}{
			"key": key,
		})
		_ = c.redis.Del(ctx, key)
		metrics.MetricCacheRequests.WithLabelValues("miss").Inc()
		return false
	}

	metrics.MetricCacheRequests.WithLabelValues("hit").Inc()
	return true
}

// Set stores a metric result under key for the configured TTL.
func (c *MetricsCache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.redis == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WithError(err).Warn("cache write failed", map[string]interface{}{
			"key": key,
		})
	}
}
