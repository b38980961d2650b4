package cacheinfra

import (
	"time"
)

// Kind selects a cache backend implementation.
type Kind string

const (
	KindSturdyc Kind = "sturdyc"
	KindOtter   Kind = "otter"
	KindRedis   Kind = "redis"
)

// Config holds the configuration shared by every backend. Fields that a
// backend does not use are ignored by it.
type Config struct {
	// Backend selects the implementation. Empty means sturdyc.
	Backend Kind

	// Capacity defines the maximum number of entries an in-process backend
	// stores. Must be greater than 0.
	Capacity int

	// NumShards determines the number of sturdyc shards.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the longest time an in-process backend keeps an entry. Each
	// entry also carries its own TTL, checked on read, which must not
	// exceed this value.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of sturdyc entries to
	// evict when the cache reaches its capacity. Must be between 1-100.
	// Default: 10
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration

	// RedisURL is a redis:// or rediss:// URL. Required for KindRedis.
	RedisURL string
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            KindSturdyc,
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch c.kind() {
	case KindSturdyc, KindOtter:
	case KindRedis:
		if c.RedisURL == "" {
			return &ConfigError{Field: "RedisURL", Message: "required for the redis backend"}
		}
		return nil
	default:
		return &ConfigError{Field: "Backend", Message: "must be one of sturdyc, otter, redis"}
	}

	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.kind() == KindOtter {
		return nil
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

func (c Config) kind() Kind {
	if c.Backend == "" {
		return KindSturdyc
	}
	return c.Backend
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
