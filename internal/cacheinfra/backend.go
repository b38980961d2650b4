// Package cacheinfra provides the byte-level cache backends behind
// cache.Layer: sturdyc and otter for a single process, redis for caches
// shared between instances.
package cacheinfra

import (
	"context"
	"time"
)

// Backend matches cache.Backend and adds Close.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.kind() {
	case KindOtter:
		return NewOtterBackend(cfg)
	case KindRedis:
		return NewRedisBackend(cfg)
	default:
		return NewSturdycBackend(cfg)
	}
}
