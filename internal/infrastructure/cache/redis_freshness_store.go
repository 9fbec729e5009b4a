package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketsync/backend/internal/domain/integration"
)

// DefaultFreshnessKeyPrefix prefixes every freshness key
const DefaultFreshnessKeyPrefix = "sync:categories:synced:"

// RedisFreshnessStore implements CategoryFreshnessStore using Redis.
// Multiple instances share the last sync time of every scope.
type RedisFreshnessStore struct {
	client    *redis.Client
	keyPrefix string
	// retention expires keys so abandoned scopes do not linger
	retention time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Retention is the key TTL, 0 keeps keys forever
	Retention time.Duration
}

// NewRedisFreshnessStore creates a new Redis-based freshness store
func NewRedisFreshnessStore(cfg RedisConfig) (*RedisFreshnessStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisFreshnessStoreWithClient(client, "", cfg.Retention), nil
}

// NewRedisFreshnessStoreWithClient creates a store with an existing Redis client
func NewRedisFreshnessStoreWithClient(client *redis.Client, keyPrefix string, retention time.Duration) *RedisFreshnessStore {
	if keyPrefix == "" {
		keyPrefix = DefaultFreshnessKeyPrefix
	}
	return &RedisFreshnessStore{
		client:    client,
		keyPrefix: keyPrefix,
		retention: retention,
	}
}

func (s *RedisFreshnessStore) key(scope integration.CategoryScope) string {
	return s.keyPrefix + scope.String()
}

// LastSynced returns when the scope's categories were last synced
func (s *RedisFreshnessStore) LastSynced(ctx context.Context, scope integration.CategoryScope) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read category sync time: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// A corrupt value is treated as never synced
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// MarkSynced records a successful category sync
func (s *RedisFreshnessStore) MarkSynced(ctx context.Context, scope integration.CategoryScope, at time.Time) error {
	if err := s.client.Set(ctx, s.key(scope), at.UTC().Format(time.RFC3339Nano), s.retention).Err(); err != nil {
		return fmt.Errorf("failed to record category sync time: %w", err)
	}
	return nil
}

// Invalidate forgets the last sync time so the next request syncs
func (s *RedisFreshnessStore) Invalidate(ctx context.Context, scope integration.CategoryScope) error {
	if err := s.client.Del(ctx, s.key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate category sync time: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisFreshnessStore) Close() error {
	return s.client.Close()
}

// Ensure RedisFreshnessStore implements CategoryFreshnessStore
var _ integration.CategoryFreshnessStore = (*RedisFreshnessStore)(nil)
