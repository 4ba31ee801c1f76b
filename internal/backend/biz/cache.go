package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mentis-ai/mentis/internal/model"
	"github.com/mentis-ai/mentis/pkg/utils/json"
)

// RetrievalCacheConfig configures the retrieval cache.
type RetrievalCacheConfig struct {
	// Enabled turns the cache on. Disabled or without a Redis client
	// every lookup is a miss and every store a no-op.
	Enabled bool

	// TTL is the cache entry lifetime.
	TTL time.Duration

	// KeyPrefix namespaces the cache keys.
	KeyPrefix string
}

// DefaultRetrievalCacheConfig returns the defaults.
func DefaultRetrievalCacheConfig() *RetrievalCacheConfig {
	return &RetrievalCacheConfig{
		Enabled:   false,
		TTL:       time.Hour,
		KeyPrefix: "backend:retrieval:",
	}
}

// RetrievalCache caches assembled retrieval results per query so
// repeated questions skip the embed-and-search round trip.
type RetrievalCache struct {
	redis  *goredis.Client
	config *RetrievalCacheConfig
}

// NewRetrievalCache creates a cache. redis may be nil.
func NewRetrievalCache(redis *goredis.Client, config *RetrievalCacheConfig) *RetrievalCache {
	if config == nil {
		config = DefaultRetrievalCacheConfig()
	}
	return &RetrievalCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey hashes the query so arbitrary text stays a valid key.
func (c *RetrievalCache) cacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get returns the cached result for a query, nil on miss.
func (c *RetrievalCache) Get(ctx context.Context, query string) *model.RetrievalResult {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	key := c.cacheKey(query)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("retrieval cache read failed", "error", err, "key", key)
		}
		return nil
	}

	var result model.RetrievalResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("corrupted retrieval cache entry, dropping", "error", err, "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	return &result
}

// Set stores a retrieval result.
func (c *RetrievalCache) Set(ctx context.Context, query string, result *model.RetrievalResult) {
	if !c.config.Enabled || c.redis == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal retrieval result for caching", "error", err)
		return
	}

	key := c.cacheKey(query)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("retrieval cache write failed", "error", err, "key", key)
	}
}

// Clear drops every cached retrieval result. Called on reindex, since
// a rebuilt collection invalidates all cached contexts.
func (c *RetrievalCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err, "key", iter.Val())
		} else {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("retrieval cache cleared", "deleted", deleted)
	return nil
}
