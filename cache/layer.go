package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidTTL is returned by Store for non-positive TTLs.
var ErrInvalidTTL = errors.New("cache: ttl must be greater than 0")

// Entry is the envelope written to the backend. The layer checks the TTL on
// every read, so an entry is never served past StoredAt+TTL even when the
// backend keeps it longer.
type Entry struct {
	Value    []byte `msgpack:"v"`
	StoredAt int64  `msgpack:"s"`
	TTL      int64  `msgpack:"t"`
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.UnixNano() >= e.StoredAt+e.TTL
}

// Stats is a snapshot of layer counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Stores        int64
	Invalidations int64
	Errors        int64
}

type counters struct {
	hits          *xsync.Counter
	misses        *xsync.Counter
	stores        *xsync.Counter
	invalidations *xsync.Counter
	errors        *xsync.Counter
}

// Layer implements CacheService on top of a Backend. Values are msgpack
// encoded inside an Entry.
type Layer struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
	stats   counters

	// backend drops expired entries on its own
	evicts bool
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithLogger sets the logger used to report backend failures.
func WithLogger(logger *slog.Logger) LayerOption {
	return func(l *Layer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) LayerOption {
	return func(l *Layer) {
		if now != nil {
			l.now = now
		}
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) LayerOption {
	return func(l *Layer) { l.timeout = d }
}

// NewLayer wraps backend.
func NewLayer(backend Backend, opts ...LayerOption) *Layer {
	l := &Layer{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		stats: counters{
			hits:          xsync.NewCounter(),
			misses:        xsync.NewCounter(),
			stores:        xsync.NewCounter(),
			invalidations: xsync.NewCounter(),
			errors:        xsync.NewCounter(),
		},
	}
	if e, ok := backend.(TTLEvictor); ok {
		l.evicts = e.EvictsAtTTL()
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "cache")
	return l
}

// Lookup implements CacheService.
func (l *Layer) Lookup(ctx context.Context, key string, dest any) (bool, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	raw, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		l.stats.errors.Inc()
		l.stats.misses.Inc()
		l.logger.Warn("cache lookup failed, treating as miss", "key", key, "error", err)
		return false, err
	}
	if !ok {
		l.stats.misses.Inc()
		return false, nil
	}

	var entry Entry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		l.discard(ctx, key, "undecodable entry", err)
		return false, nil
	}
	if entry.Expired(l.now()) {
		if l.evicts {
			l.stats.misses.Inc()
			return false, nil
		}
		l.discard(ctx, key, "", nil)
		return false, nil
	}
	if err := msgpack.Unmarshal(entry.Value, dest); err != nil {
		l.discard(ctx, key, "undecodable value", err)
		return false, nil
	}

	l.stats.hits.Inc()
	return true, nil
}

// Store implements CacheService.
func (l *Layer) Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	payload, err := msgpack.Marshal(value)
	if err != nil {
		l.stats.errors.Inc()
		l.logger.Error("cache encode failed", "key", key, "error", err)
		return err
	}
	raw, err := msgpack.Marshal(Entry{Value: payload, StoredAt: l.now().UnixNano(), TTL: int64(ttl)})
	if err != nil {
		l.stats.errors.Inc()
		return err
	}

	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.backend.Set(ctx, key, raw, ttl); err != nil {
		l.stats.errors.Inc()
		l.logger.Warn("cache store failed", "key", key, "error", err)
		return err
	}
	l.stats.stores.Inc()
	return nil
}

// Delete implements CacheService.
func (l *Layer) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.backend.Delete(ctx, keys...); err != nil {
		l.stats.errors.Inc()
		l.logger.Warn("cache delete failed", "keys", keys, "error", err)
		return err
	}
	l.stats.invalidations.Add(int64(len(keys)))
	return nil
}

// DeleteByPrefix implements CacheService. The sweep visits every key under
// prefix; there is no index narrowing it further.
func (l *Layer) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	keys, err := l.backend.Keys(ctx, prefix)
	if err != nil {
		l.stats.errors.Inc()
		l.logger.Warn("cache key scan failed", "prefix", prefix, "error", err)
		return 0, err
	}

	matched := keys[:0]
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	if err := l.backend.Delete(ctx, matched...); err != nil {
		l.stats.errors.Inc()
		l.logger.Warn("cache prefix delete failed", "prefix", prefix, "error", err)
		return 0, err
	}
	l.stats.invalidations.Add(int64(len(matched)))
	l.logger.Debug("cache prefix swept", "prefix", prefix, "keys", len(matched))
	return len(matched), nil
}

// Stats returns the current counters.
func (l *Layer) Stats() Stats {
	return Stats{
		Hits:          l.stats.hits.Value(),
		Misses:        l.stats.misses.Value(),
		Stores:        l.stats.stores.Value(),
		Invalidations: l.stats.invalidations.Value(),
		Errors:        l.stats.errors.Value(),
	}
}

// Close releases the backend when it holds resources.
func (l *Layer) Close() error {
	if c, ok := l.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// discard counts a miss and deletes key. A Store landing between the read
// and the delete is lost too; the next read misses and refills it.
func (l *Layer) discard(ctx context.Context, key, reason string, cause error) {
	l.stats.misses.Inc()
	if cause != nil {
		l.stats.errors.Inc()
		l.logger.Warn("cache entry dropped", "key", key, "reason", reason, "error", cause)
	}
	if err := l.backend.Delete(ctx, key); err != nil {
		l.logger.Debug("cache lazy delete failed", "key", key, "error", err)
	}
}

func (l *Layer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}
