package repositorycache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-listings/cache"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// Defaults used when ListingCache options are not supplied.
const (
	DefaultNamespace = "listings"
	DefaultListTTL   = time.Minute
	DefaultEntityTTL = 5 * time.Minute
)

// ListingCache stores result pages and single listings in a cache.CacheService.
//
// Keys are laid out as
//
//	<namespace>:list:<signature>
//	<namespace>:entity:<id>
//
// so every result page can be swept with one prefix delete.
type ListingCache struct {
	svc       cache.CacheService
	keys      cache.KeySerializer
	namespace string
	listTTL   time.Duration
	entityTTL time.Duration
	logger    *slog.Logger
}

// CacheOption configures a ListingCache.
type CacheOption func(*ListingCache)

func WithNamespace(ns string) CacheOption {
	return func(c *ListingCache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

func WithListTTL(ttl time.Duration) CacheOption {
	return func(c *ListingCache) {
		if ttl > 0 {
			c.listTTL = ttl
		}
	}
}

func WithEntityTTL(ttl time.Duration) CacheOption {
	return func(c *ListingCache) {
		if ttl > 0 {
			c.entityTTL = ttl
		}
	}
}

// WithKeySerializer replaces the serializer used to derive list signatures.
func WithKeySerializer(s cache.KeySerializer) CacheOption {
	return func(c *ListingCache) {
		if s != nil {
			c.keys = s
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *ListingCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewListingCache returns a ListingCache over svc.
func NewListingCache(svc cache.CacheService, opts ...CacheOption) *ListingCache {
	c := &ListingCache{
		svc:       svc,
		keys:      cache.NewDefaultKeySerializer(),
		namespace: DefaultNamespace,
		listTTL:   DefaultListTTL,
		entityTTL: DefaultEntityTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "listing_cache", "namespace", c.namespace)
	return c
}

// Signature derives the cache signature of d. Descriptors selecting the same
// rows in the same order produce the same signature.
func (c *ListingCache) Signature(d query.Descriptor) string {
	return cache.HashKey(c.keys, "search", d)
}

func (c *ListingCache) ListTTL() time.Duration   { return c.listTTL }
func (c *ListingCache) EntityTTL() time.Duration { return c.entityTTL }

func (c *ListingCache) listPrefix() string { return c.namespace + ":list:" }

func (c *ListingCache) listKey(signature string) string { return c.listPrefix() + signature }

func (c *ListingCache) entityKey(id string) string { return c.namespace + ":entity:" + id }

// LookupList returns the page cached under signature. Any failure is a miss.
func (c *ListingCache) LookupList(ctx context.Context, signature string) (listing.Page, bool) {
	var page listing.Page
	hit, err := c.svc.Lookup(ctx, c.listKey(signature), &page)
	if err != nil || !hit {
		return listing.Page{}, false
	}
	page.Normalize()
	return page, true
}

// StoreList caches page under signature. A non-positive ttl uses the
// configured list TTL.
func (c *ListingCache) StoreList(ctx context.Context, signature string, page listing.Page, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.listTTL
	}
	return c.svc.Store(ctx, c.listKey(signature), page, ttl)
}

// LookupEntity returns the listing cached under id. Any failure is a miss.
func (c *ListingCache) LookupEntity(ctx context.Context, id string) (listing.Listing, bool) {
	var l listing.Listing
	hit, err := c.svc.Lookup(ctx, c.entityKey(id), &l)
	if err != nil || !hit {
		return listing.Listing{}, false
	}
	l.Normalize()
	return l, true
}

// StoreEntity caches l under id. A non-positive ttl uses the configured
// entity TTL.
func (c *ListingCache) StoreEntity(ctx context.Context, id string, l listing.Listing, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.entityTTL
	}
	return c.svc.Store(ctx, c.entityKey(id), l, ttl)
}

// InvalidateEntity removes the cached copy of listing id.
func (c *ListingCache) InvalidateEntity(ctx context.Context, id string) error {
	return c.svc.Delete(ctx, c.entityKey(id))
}

// InvalidateAllLists removes every cached result page in the namespace and
// reports how many were removed.
func (c *ListingCache) InvalidateAllLists(ctx context.Context) (int, error) {
	n, err := c.svc.DeleteByPrefix(ctx, c.listPrefix())
	if err == nil {
		c.logger.DebugContext(ctx, "list cache swept", "removed", n)
	}
	return n, err
}

// ListOrFetch serves the page for d from the cache, or calls fetch and caches
// its result. Fetch errors are returned and never cached.
func (c *ListingCache) ListOrFetch(ctx context.Context, d query.Descriptor, fetch cache.FetchFn[listing.Page]) (listing.Page, error) {
	page, err := cache.GetOrFetch(ctx, c.svc, c.listKey(c.Signature(d)), c.listTTL, fetch)
	if err != nil {
		return listing.Page{}, err
	}
	page.Normalize()
	return page, nil
}

// EntityOrFetch serves listing id from the cache, or calls fetch and caches
// its result. A NotFoundError from fetch is returned and nothing is cached.
func (c *ListingCache) EntityOrFetch(ctx context.Context, id string, fetch cache.FetchFn[listing.Listing]) (listing.Listing, error) {
	l, err := cache.GetOrFetch(ctx, c.svc, c.entityKey(id), c.entityTTL, fetch)
	if err != nil {
		return listing.Listing{}, err
	}
	l.Normalize()
	return l, nil
}
