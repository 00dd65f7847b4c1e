// Package cache memoizes classifier labels keyed by model identity and
// feature vector.
//
// Two tiers are used: an in-process LRU and, when a Redis URL is configured,
// a shared Redis tier. Only labels are stored; keys are SHA-256 digests so
// that no clinical value is written to Redis in clear text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinical-risk-scorer/internal/domain"
)

const (
	keyPrefix         = "riskscore:prediction:"
	defaultMemorySize = 1024
	defaultTTL        = time.Hour
)

type entry struct {
	Label     domain.Label `json:"label"`
	Model     string       `json:"model"`
	CachedAt  time.Time    `json:"cached_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Stats counts cache activity per tier.
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	RedisErrors  int64 `json:"redis_errors"`
	Stores       int64 `json:"stores"`
	MemoryLen    int   `json:"memory_len"`
}

// PredictionCache is a two-tier label memo.
type PredictionCache struct {
	memory *lru.Cache[string, entry]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	memoryHits   atomic.Int64
	memoryMisses atomic.Int64
	redisHits    atomic.Int64
	redisMisses  atomic.Int64
	redisErrors  atomic.Int64
	stores       atomic.Int64
}

// New builds a cache from configuration. When cfg.RedisURL is set the Redis
// tier is connected and pinged; a failed ping is an error.
func New(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (*PredictionCache, error) {
	var client *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		if cfg.PoolTimeout > 0 {
			opts.PoolTimeout = cfg.PoolTimeout
		}
		if cfg.MaxRetries > 0 {
			opts.MaxRetries = cfg.MaxRetries
		}
		client = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}
	return NewWithClient(cfg.MemorySize, client, cfg.DefaultTTL, logger)
}

// NewWithClient builds a cache over an existing Redis client, which may be
// nil for a memory-only cache.
func NewWithClient(memorySize int, client *redis.Client, ttl time.Duration, logger *logrus.Logger) (*PredictionCache, error) {
	if memorySize <= 0 {
		memorySize = defaultMemorySize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logrus.New()
	}

	memory, err := lru.New[string, entry](memorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &PredictionCache{
		memory: memory,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Key derives the cache key of a prediction.
func Key(modelName, modelVersion string, vec domain.FeatureVector) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(modelVersion))
	h.Write([]byte{0})
	h.Write([]byte(vec.Domain))
	for _, v := range vec.Values {
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the memoized label for key. Redis failures are logged and
// reported as a miss.
func (c *PredictionCache) Get(ctx context.Context, key string) (domain.Label, bool) {
	if e, ok := c.memory.Get(key); ok {
		if time.Now().Before(e.ExpiresAt) {
			c.memoryHits.Add(1)
			return e.Label, true
		}
		c.memory.Remove(key)
	}
	c.memoryMisses.Add(1)

	if c.redis == nil {
		return 0, false
	}

	val, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.redisMisses.Add(1)
		return 0, false
	}
	if err != nil {
		c.redisErrors.Add(1)
		c.logger.WithError(err).Warn("Prediction cache read failed")
		return 0, false
	}

	var e entry
	if err := json.Unmarshal(val, &e); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, keyPrefix+key)
		c.redisMisses.Add(1)
		return 0, false
	}
	if time.Now().After(e.ExpiresAt) {
		c.redis.Del(ctx, keyPrefix+key)
		c.redisMisses.Add(1)
		return 0, false
	}

	c.redisHits.Add(1)
	c.memory.Add(key, e)
	return e.Label, true
}

// Set memoizes a label in both tiers.
func (c *PredictionCache) Set(ctx context.Context, key, model string, label domain.Label) {
	now := time.Now()
	e := entry{Label: label, Model: model, CachedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.memory.Add(key, e)
	c.stores.Add(1)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode prediction cache entry")
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.redisErrors.Add(1)
		c.logger.WithError(err).Warn("Prediction cache write failed")
	}
}

// Purge empties the memory tier.
func (c *PredictionCache) Purge() {
	c.memory.Purge()
}

// Stats returns a snapshot of the counters.
func (c *PredictionCache) Stats() Stats {
	return Stats{
		MemoryHits:   c.memoryHits.Load(),
		MemoryMisses: c.memoryMisses.Load(),
		RedisHits:    c.redisHits.Load(),
		RedisMisses:  c.redisMisses.Load(),
		RedisErrors:  c.redisErrors.Load(),
		Stores:       c.stores.Load(),
		MemoryLen:    c.memory.Len(),
	}
}

// HasRedis reports whether the shared tier is configured.
func (c *PredictionCache) HasRedis() bool {
	return c.redis != nil
}

// Ping checks the Redis tier, if any.
func (c *PredictionCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *PredictionCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
