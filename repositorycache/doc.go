// Package repositorycache puts a read-through, write-invalidate cache in
// front of the listing store.
//
// # Reads
//
// CachedRepository.Search turns request parameters into a canonical
// query.Descriptor, hashes it into a signature and serves the page from
// the cache. On a miss the store.Executor runs the query and the page is
// stored with the list TTL. Get does the same for single listings with the
// entity TTL. Errors from the store, including not found, are returned and
// never cached.
//
//	lc := repositorycache.NewListingCache(layer, repositorycache.WithNamespace("listings"))
//	repo := repositorycache.New(store.NewExecutor(db), lc)
//
//	page, err := repo.Search(ctx, query.Params{"city": "austin", "maxPrice": "5000"})
//
// A cache that cannot be reached is treated as a miss; reads only fail when
// the store fails.
//
// # Writes
//
// Create, Update and Delete follow the same sequence:
//
//  1. Parse and validate the request. Nothing is written on failure.
//  2. Authorize. Update and Delete load the listing from the store and
//     require the requester to be its creator.
//  3. Persist.
//  4. Invalidate through the InvalidationPolicy.
//
// Invalidation runs only after the store reports success. Its failures are
// logged and do not fail the mutation; entries left behind expire with
// their TTL.
//
// # Invalidation
//
// FullSweep removes every cached page after any mutation, plus the cached
// entity on update and delete. Any new or changed listing can move in or
// out of any page, so pages are not patched in place. Policies compose:
// broadcast.Policy wraps one to replay invalidations on other instances.
//
// # Keys
//
//	<namespace>:list:<xxhash of the descriptor>
//	<namespace>:entity:<id>
package repositorycache
