package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/maypok86/otter"
)

// OtterBackend stores entries in an otter cache with a TTL per entry.
type OtterBackend struct {
	cache otter.CacheWithVariableTTL[string, []byte]
}

func NewOtterBackend(cfg Config) (*OtterBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := otter.MustBuilder[string, []byte](cfg.Capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, err
	}
	return &OtterBackend{cache: c}, nil
}

func (b *OtterBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := b.cache.Get(key)
	return value, ok, nil
}

func (b *OtterBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.cache.Set(key, value, ttl)
	return nil
}

// EvictsAtTTL implements cache.TTLEvictor.
func (b *OtterBackend) EvictsAtTTL() bool { return true }

func (b *OtterBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.cache.Delete(key)
	}
	return nil
}

func (b *OtterBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	b.cache.Range(func(key string, _ []byte) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

func (b *OtterBackend) Close() error {
	b.cache.Close()
	return nil
}
