package cache

import (
	"context"
	"time"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls and processes.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// Backend is the raw byte store behind a Layer. Implementations live in
// internal/cacheinfra (sturdyc, otter, redis).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// TTLEvictor is implemented by backends that evict entries once the TTL
// given to Set elapses. The layer leaves expired entries to them.
type TTLEvictor interface {
	EvictsAtTTL() bool
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the typed read-through and invalidation operations
// the repository decorator needs.
type CacheService interface {
	// Lookup decodes the entry stored under key into dest. It reports false
	// for missing, expired or undecodable entries.
	Lookup(ctx context.Context, key string, dest any) (bool, error)
	// Store encodes value under key for ttl.
	Store(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every entry whose key starts with prefix and
	// returns how many keys were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// GetOrFetch returns the cached value under key, or calls fetchFn and stores
// its result for ttl. Lookup failures are treated as misses and store
// failures do not fail the read: the service already reports both. Fetch
// errors are returned as-is and never cached.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	var cached T
	if hit, err := service.Lookup(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	_ = service.Store(ctx, key, value, ttl)
	return value, nil
}
