package cache

import (
	"testing"
	"time"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{
		Host:        "127.0.0.1",
		Port:        1,
		PoolSize:    1,
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
		OpTimeout:   time.Second,
	}
}

func TestNewRedisClient(t *testing.T) {
	cfg := config.RedisConfig{
		Host:         "redis.internal",
		Port:         6380,
		Password:     "pw",
		DB:           2,
		PoolSize:     15,
		MinIdleConns: 3,
		MaxRetries:   4,
	}

	client := NewRedisClient(cfg)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 15, opts.PoolSize)
	assert.Equal(t, 3, opts.MinIdleConns)
	assert.Equal(t, 4, opts.MaxRetries)
}

func TestCartStoreFactory_FallsBackToMemory(t *testing.T) {
	f := NewCartStoreFactory(unreachableRedis(),
		WithLogger(zaptest.NewLogger(t)),
		WithInMemoryFallback(true),
	)

	store, closeFn, err := f.CreateStore()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryCartStore{}, store)
	assert.NoError(t, closeFn())
}

func TestCartStoreFactory_NoFallback(t *testing.T) {
	f := NewCartStoreFactory(unreachableRedis(), WithLogger(zaptest.NewLogger(t)))

	store, closeFn, err := f.CreateStore()
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Nil(t, closeFn)
	assert.Contains(t, err.Error(), "Redis required")
}

func TestCartStoreFactory_FallbackDefaultFromConfig(t *testing.T) {
	cfg := unreachableRedis()
	cfg.AllowInMemoryFallback = true

	store, _, err := NewCartStoreFactory(cfg).CreateStore()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryCartStore{}, store)
}
