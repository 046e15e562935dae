package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markdex/markdex/internal/config"
	"github.com/markdex/markdex/internal/search"
	"github.com/markdex/markdex/internal/telemetry"
)

// SearchCache is a read-through Redis cache for rendered search
// responses. Entries are keyed by the cursor and the index view
// generation, so a new commit naturally invalidates every cached page.
// Cache failures degrade to a miss and never fail the request.
type SearchCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewSearchCache connects to Redis per cfg. An empty address disables
// caching and returns nil.
func NewSearchCache(cfg config.CacheConfig, metrics *telemetry.Metrics, logger *slog.Logger) *SearchCache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.TTL.Std()
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SearchCache{
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.With("component", "cache"),
	}
}

// Key derives the cache key for one search page against one view
// generation.
func (c *SearchCache) Key(cursor search.Cursor, generation uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", cursor.Encode(), generation)))
	return "markdex:search:" + hex.EncodeToString(sum[:])
}

// Get returns the cached response body for key, or false on a miss.
func (c *SearchCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache get failed", "error", err)
		}
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	c.metrics.CacheHitsTotal.Inc()
	return payload, true
}

// Set stores the response body under key for the configured TTL.
func (c *SearchCache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *SearchCache) Close() error {
	return c.client.Close()
}
