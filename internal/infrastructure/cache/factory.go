package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CartStoreFactory creates authenticated cart stores based on configuration
type CartStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	metrics               *telemetry.CartMetrics
	allowInMemoryFallback bool
}

// CartStoreFactoryOption is a functional option for configuring the factory
type CartStoreFactoryOption func(*CartStoreFactory)

// WithLogger sets the logger for the factory and the stores it creates
func WithLogger(logger *zap.Logger) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.logger = logger
	}
}

// WithMetrics sets cart metrics for the stores the factory creates
func WithMetrics(m *telemetry.CartMetrics) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.metrics = m
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable.
// Default comes from redis.allow_in_memory_fallback.
func WithInMemoryFallback(allow bool) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCartStoreFactory creates a new factory
func NewCartStoreFactory(cfg config.RedisConfig, opts ...CartStoreFactoryOption) *CartStoreFactory {
	f := &CartStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: cfg.AllowInMemoryFallback,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewRedisClient builds a pooled client from configuration. Retries are
// carried by the client; the cart code never loops.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// CreateRedisStore connects to Redis and returns a cart store over it
func (f *CartStoreFactory) CreateRedisStore() (*RedisCartStore, error) {
	client := NewRedisClient(f.redisConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCartStoreWithClient(client,
		WithOpTimeout(f.redisConfig.OpTimeout),
		WithStoreLogger(f.logger),
		WithStoreMetrics(f.metrics),
	), nil
}

// CreateInMemoryStore creates an in-memory cart store
// WARNING: carts are not shared across process instances and vanish on restart
func (f *CartStoreFactory) CreateInMemoryStore() *InMemoryCartStore {
	return NewInMemoryCartStore()
}

// CreateStore tries Redis first and falls back to the in-memory store when
// fallback is allowed
func (f *CartStoreFactory) CreateStore() (cart.AuthenticatedStore, func() error, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis cart store", zap.String("addr", f.redisConfig.Addr()))
		return store, store.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for cart store but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cart store. "+
		"Authenticated carts will not survive restarts or be shared across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), func() error { return nil }, nil
}
