package cache

import (
	"time"

	"github.com/goliatone/go-listings/internal/cacheinfra"
)

// Backend names accepted by Config.Backend.
const (
	BackendSturdyc = string(cacheinfra.KindSturdyc)
	BackendOtter   = string(cacheinfra.KindOtter)
	BackendRedis   = string(cacheinfra.KindRedis)
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            string
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
	RedisURL           string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService builds the configured backend and wraps it in a Layer.
func NewCacheService(cfg Config, opts ...LayerOption) (*Layer, error) {
	backend, err := cacheinfra.New(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return NewLayer(backend, opts...), nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Backend:            cacheinfra.Kind(c.Backend),
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		RedisURL:           c.RedisURL,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Backend:            string(cfg.Backend),
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		RedisURL:           cfg.RedisURL,
	}
}
