package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycBackend stores entries in a sharded in-process sturdyc client.
// sturdyc applies one TTL to the whole client, so per-entry TTLs are left to
// the envelope checked by cache.Layer.
type SturdycBackend struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycBackend validates cfg and builds the client.
//
// Capacity, NumShards, TTL and EvictionPercentage are passed to sturdyc.New;
// EvictionInterval is applied as an option.
func NewSturdycBackend(cfg Config) (*SturdycBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)
	return &SturdycBackend{client: client}, nil
}

func (b *SturdycBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := b.client.Get(key)
	return value, ok, nil
}

func (b *SturdycBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.client.Set(key, value)
	return nil
}

func (b *SturdycBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.client.Delete(key)
	}
	return nil
}

// Keys scans every shard; the cost grows with the number of cached entries.
func (b *SturdycBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, key := range b.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Size returns the number of entries currently held.
func (b *SturdycBackend) Size() int {
	return b.client.Size()
}

func (b *SturdycBackend) Close() error { return nil }
