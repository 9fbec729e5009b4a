package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/config"
)

// FreshnessStore is a CategoryFreshnessStore that holds resources
type FreshnessStore interface {
	integration.CategoryFreshnessStore
	Close() error
}

// FreshnessStoreFactory creates freshness stores based on configuration
type FreshnessStoreFactory struct {
	redisConfig           config.RedisConfig
	retention             time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FreshnessStoreFactoryOption is a functional option for configuring the factory
type FreshnessStoreFactoryOption func(*FreshnessStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FreshnessStoreFactoryOption {
	return func(f *FreshnessStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FreshnessStoreFactoryOption {
	return func(f *FreshnessStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithRetention expires recorded sync times after d
func WithRetention(d time.Duration) FreshnessStoreFactoryOption {
	return func(f *FreshnessStoreFactory) {
		f.retention = d
	}
}

// NewFreshnessStoreFactory creates a new factory
func NewFreshnessStoreFactory(cfg config.RedisConfig, opts ...FreshnessStoreFactoryOption) *FreshnessStoreFactory {
	f := &FreshnessStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: !cfg.Required,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based freshness store
func (f *FreshnessStoreFactory) CreateRedisStore() (FreshnessStore, error) {
	store, err := NewRedisFreshnessStore(RedisConfig{
		Addr:      f.redisConfig.Addr(),
		Password:  f.redisConfig.Password,
		DB:        f.redisConfig.DB,
		Retention: f.retention,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis freshness store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory freshness store
// WARNING: In-memory stores do not share state across process instances,
// so each instance keeps its own category sync times
func (f *FreshnessStoreFactory) CreateInMemoryStore() FreshnessStore {
	return NewInMemoryFreshnessStore(f.retention)
}

// CreateStore tries Redis first and falls back to in-memory if Redis is not
// available and the fallback is allowed
func (f *FreshnessStoreFactory) CreateStore() (FreshnessStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis category freshness store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for category freshness but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory category freshness store. "+
		"Instances will not share category sync times.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
