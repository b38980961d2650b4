// Package config loads service settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-listings/cache"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	AppName   string
	Port      string
	Store     StoreConfig
	Cache     CacheConfig
	Query     QueryConfig
	Auth      AuthConfig
	Log       LogConfig
	Broadcast BroadcastConfig
	Telemetry TelemetryConfig
}

type StoreConfig struct {
	Driver        string
	URL           string
	MongoDatabase string
	// UsersURL is the SQLite DSN holding accounts when listings live in
	// MongoDB. SQL drivers keep accounts next to the listings.
	UsersURL string
	Timeout  time.Duration
}

type CacheConfig struct {
	Backend   string
	RedisURL  string
	Namespace string
	Capacity  int
	ListTTL   time.Duration
	EntityTTL time.Duration
	Timeout   time.Duration
}

type QueryConfig struct {
	Strict       bool
	DefaultLimit int
	MaxLimit     int
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type LogConfig struct {
	Level         string
	Format        string
	FluentEnabled bool
	FluentHost    string
	FluentPort    int
}

type BroadcastConfig struct {
	URL      string
	Exchange string
}

type TelemetryConfig struct {
	Endpoint string
}

// Default returns the configuration used for every unset variable.
func Default() Config {
	return Config{
		AppName: "listingsd",
		Port:    "8080",
		Store: StoreConfig{
			Driver:        DriverSQLite,
			URL:           "file:listings.db?cache=shared",
			MongoDatabase: "listings",
			UsersURL:      "file:users.db?cache=shared",
			Timeout:       5 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   cache.BackendSturdyc,
			Namespace: "listings",
			Capacity:  10000,
			ListTTL:   time.Minute,
			EntityTTL: 5 * time.Minute,
			Timeout:   250 * time.Millisecond,
		},
		Query: QueryConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			FluentHost: "127.0.0.1",
			FluentPort: 24224,
		},
		Broadcast: BroadcastConfig{
			Exchange: "listings.invalidate",
		},
	}
}

// Load reads the given .env files, or ./.env when none is given, and then
// the environment. Missing .env files are ignored; variables already set in
// the environment win over file values.
func Load(envPaths ...string) (Config, error) {
	if err := godotenv.Load(envPaths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, &ConfigError{Field: "env file", Message: err.Error()}
	}
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from lookup on top of Default. It only fails on
// values that cannot be parsed.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}
	cfg := Default()

	r.str("APP_NAME", &cfg.AppName)
	r.str("PORT", &cfg.Port)

	r.str("STORE_DRIVER", &cfg.Store.Driver)
	r.str("DATABASE_URL", &cfg.Store.URL)
	r.str("MONGO_DATABASE", &cfg.Store.MongoDatabase)
	r.str("USERS_DATABASE_URL", &cfg.Store.UsersURL)
	r.duration("STORE_TIMEOUT", &cfg.Store.Timeout)

	r.str("CACHE_BACKEND", &cfg.Cache.Backend)
	r.str("REDIS_URL", &cfg.Cache.RedisURL)
	r.str("CACHE_NAMESPACE", &cfg.Cache.Namespace)
	r.integer("CACHE_CAPACITY", &cfg.Cache.Capacity)
	r.duration("CACHE_LIST_TTL", &cfg.Cache.ListTTL)
	r.duration("CACHE_ENTITY_TTL", &cfg.Cache.EntityTTL)
	r.duration("CACHE_TIMEOUT", &cfg.Cache.Timeout)

	r.boolean("QUERY_STRICT", &cfg.Query.Strict)
	r.integer("QUERY_DEFAULT_LIMIT", &cfg.Query.DefaultLimit)
	r.integer("QUERY_MAX_LIMIT", &cfg.Query.MaxLimit)

	r.str("JWT_SECRET", &cfg.Auth.Secret)
	r.duration("JWT_TTL", &cfg.Auth.TokenTTL)

	r.str("LOG_LEVEL", &cfg.Log.Level)
	r.str("LOG_FORMAT", &cfg.Log.Format)
	r.boolean("FLUENT_ENABLED", &cfg.Log.FluentEnabled)
	r.str("FLUENT_HOST", &cfg.Log.FluentHost)
	r.integer("FLUENT_PORT", &cfg.Log.FluentPort)

	r.str("AMQP_URL", &cfg.Broadcast.URL)
	r.str("AMQP_EXCHANGE", &cfg.Broadcast.Exchange)

	r.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)

	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.Cache.Backend = strings.ToLower(cfg.Cache.Backend)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Port == "" {
		return &ConfigError{Field: "PORT", Message: "must not be empty"}
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	case DriverMongo:
		if c.Store.MongoDatabase == "" {
			return &ConfigError{Field: "MONGO_DATABASE", Message: "required for the mongo driver"}
		}
		if c.Store.UsersURL == "" {
			return &ConfigError{Field: "USERS_DATABASE_URL", Message: "required for the mongo driver"}
		}
	default:
		return &ConfigError{Field: "STORE_DRIVER", Message: "must be one of sqlite, postgres, mongo"}
	}
	if c.Store.URL == "" {
		return &ConfigError{Field: "DATABASE_URL", Message: "must not be empty"}
	}
	if c.Store.Timeout <= 0 {
		return &ConfigError{Field: "STORE_TIMEOUT", Message: "must be greater than 0"}
	}

	if err := c.CacheBackend().Validate(); err != nil {
		return &ConfigError{Field: "CACHE_BACKEND", Message: err.Error()}
	}
	if c.Cache.Namespace == "" || strings.Contains(c.Cache.Namespace, ":") {
		return &ConfigError{Field: "CACHE_NAMESPACE", Message: "must be non-empty and contain no ':'"}
	}
	if c.Cache.ListTTL <= 0 {
		return &ConfigError{Field: "CACHE_LIST_TTL", Message: "must be greater than 0"}
	}
	if c.Cache.EntityTTL <= 0 {
		return &ConfigError{Field: "CACHE_ENTITY_TTL", Message: "must be greater than 0"}
	}

	if c.Query.MaxLimit < 1 {
		return &ConfigError{Field: "QUERY_MAX_LIMIT", Message: "must be greater than 0"}
	}
	if c.Query.DefaultLimit < 1 || c.Query.DefaultLimit > c.Query.MaxLimit {
		return &ConfigError{Field: "QUERY_DEFAULT_LIMIT", Message: "must be between 1 and QUERY_MAX_LIMIT"}
	}

	if c.Auth.Secret == "" {
		return &ConfigError{Field: "JWT_SECRET", Message: "must not be empty"}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "LOG_FORMAT", Message: "must be text or json"}
	}
	if c.Log.FluentEnabled && (c.Log.FluentHost == "" || c.Log.FluentPort <= 0) {
		return &ConfigError{Field: "FLUENT_HOST", Message: "host and port are required when fluent is enabled"}
	}

	if c.Broadcast.URL != "" && c.Broadcast.Exchange == "" {
		return &ConfigError{Field: "AMQP_EXCHANGE", Message: "required when AMQP_URL is set"}
	}
	return nil
}

// CacheBackend returns the cache backend configuration. The in-process TTL
// is the longest entry TTL so backend eviction never cuts an entry short.
func (c Config) CacheBackend() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = c.Cache.Backend
	cfg.RedisURL = c.Cache.RedisURL
	cfg.Capacity = c.Cache.Capacity
	cfg.TTL = max(c.Cache.ListTTL, c.Cache.EntityTTL)
	return cfg
}

// ConfigError represents a configuration error on one variable.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) fail(key, msg string) {
	if r.err == nil {
		r.err = &ConfigError{Field: key, Message: msg}
	}
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) integer(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, "must be an integer")
		return
	}
	*dst = n
}

func (r *reader) boolean(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, "must be a boolean")
		return
	}
	*dst = b
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func (r *reader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, "must be a duration such as 30s or 5m")
		return
	}
	*dst = d
}
