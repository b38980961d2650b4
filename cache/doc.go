// Package cache provides the read-through cache layer and the key
// serialization used to address it.
//
// # Overview
//
//   - Backend: raw byte store (sturdyc, otter or redis, see internal/cacheinfra)
//   - Layer: CacheService over a Backend. Values are msgpack encoded inside
//     an Entry that records when they were stored and for how long they stay
//     valid.
//   - KeySerializer: builds stable keys from a method name and arguments
//   - GetOrFetch: typed read-through helper
//
// # Basic Usage
//
//	layer, err := cache.NewCacheService(cache.DefaultConfig(), cache.WithLogger(logger))
//	serializer := cache.NewDefaultKeySerializer()
//	key := "listings:list:" + cache.HashKey(serializer, "search", descriptor)
//
//	page, err := cache.GetOrFetch(ctx, layer, key, time.Minute, func(ctx context.Context) (listing.Page, error) {
//		return executor.Execute(ctx, descriptor)
//	})
//
// # Expiry
//
// The TTL stored in every Entry is authoritative. A read at or after
// StoredAt+TTL is a miss and the entry is deleted, whatever the backend's own
// eviction does. In-process backends are configured with a client-wide TTL
// that should be at least as long as the longest entry TTL.
//
// # Failure handling
//
// Backend errors never fail a read: Lookup logs them and reports a miss, and
// GetOrFetch falls through to the source of truth. Store and delete errors
// are logged and returned so callers can decide whether to surface them.
//
// # Key Serialization Strategy
//
// The default key serializer walks values with reflection:
//
//   - Basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key=value pairs
//   - Structs: exported fields as name:value pairs in declaration order,
//     or MarshalText output when the type implements encoding.TextMarshaler
//   - Functions and channels: type name only, since addresses are not
//     stable across processes
//
// HashKey reduces a serialized key to a fixed-width xxhash digest.
package cache
