package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinical-risk-scorer/internal/domain"
)

func vector(values ...float64) domain.FeatureVector {
	return domain.FeatureVector{Domain: domain.Thyroid, Values: values}
}

func TestKey(t *testing.T) {
	a := Key("thyroid", "1", vector(40, 0, 0, 1, 1.2, 8, 2.5))
	b := Key("thyroid", "1", vector(40, 0, 0, 1, 1.2, 8, 2.5))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Key("thyroid", "2", vector(40, 0, 0, 1, 1.2, 8, 2.5)), "version is part of the key")
	assert.NotEqual(t, a, Key("thyroid", "1", vector(40, 0, 0, 1, 1.2, 8, 2.6)), "values are part of the key")
	assert.NotEqual(t, Key("m", "1", vector(1, 23)), Key("m", "1", vector(12, 3)), "positions are delimited")
}

func TestMemoryTier(t *testing.T) {
	c, err := NewWithClient(2, nil, time.Minute, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Set(ctx, "a", "m", 1)
	label, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, domain.Label(1), label)

	// Capacity 2: adding two more evicts "a".
	c.Set(ctx, "b", "m", 0)
	c.Set(ctx, "c", "m", 0)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(2), stats.MemoryMisses)
	assert.Equal(t, int64(3), stats.Stores)
	assert.Equal(t, 2, stats.MemoryLen)
	assert.False(t, c.HasRedis())
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestMemoryTierExpiry(t *testing.T) {
	c, err := NewWithClient(8, nil, 20*time.Millisecond, nil)
	require.NoError(t, err)
	ctx := context.Background()

	c.Set(ctx, "k", "m", 1)
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	_, err := New(context.Background(), domain.CacheConfig{RedisURL: "not-a-url"}, nil)
	assert.Error(t, err)
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	_, err := New(context.Background(), domain.CacheConfig{RedisURL: "redis://127.0.0.1:1/0"}, nil)
	assert.Error(t, err)
}

func TestRedisTierErrorsAreMisses(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	logger, hook := test.NewNullLogger()
	c, err := NewWithClient(8, client, time.Minute, logger)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().RedisErrors)
	assert.Equal(t, "Prediction cache read failed", hook.LastEntry().Message)
}

func TestRedisTier(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s/0", host, port.Port())

	writer, err := New(ctx, domain.CacheConfig{RedisURL: url, MemorySize: 8, DefaultTTL: time.Minute}, nil)
	require.NoError(t, err)
	defer writer.Close()

	key := Key("heart", "1", vector(50, 1, 0))
	writer.Set(ctx, key, "heart", 1)

	// A second process shares the Redis tier but not the memory tier.
	reader, err := New(ctx, domain.CacheConfig{RedisURL: url, MemorySize: 8, DefaultTTL: time.Minute}, nil)
	require.NoError(t, err)
	defer reader.Close()

	label, ok := reader.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, domain.Label(1), label)
	assert.Equal(t, int64(1), reader.Stats().RedisHits)

	// Promoted into memory on the way out.
	_, ok = reader.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, int64(1), reader.Stats().MemoryHits)
	assert.True(t, reader.HasRedis())
	assert.NoError(t, reader.Ping(ctx))
}
