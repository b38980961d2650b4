// Package store defines the entity store port for listings and the query
// executor that turns a Descriptor into a page of results.
package store

import (
	"context"
	"time"

	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// Store persists listings. Implementations return listing.NotFoundError for
// missing ids and listing.DependencyError for infrastructure failures.
type Store interface {
	// FindAndCount returns the rows matching d in d's order, windowed by
	// skip and limit, together with the total number of matching rows. The
	// count and the window are read from one snapshot where the backend
	// supports it.
	FindAndCount(ctx context.Context, d query.Descriptor, skip, limit int) ([]listing.Listing, int, error)
	FindByID(ctx context.Context, id string) (listing.Listing, error)
	Create(ctx context.Context, l listing.Listing) error
	Save(ctx context.Context, l listing.Listing) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// WithTimeout bounds every call on s by d. A zero d returns s unchanged.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{base: s, timeout: d}
}

type timeoutStore struct {
	base    Store
	timeout time.Duration
}

func (s *timeoutStore) FindAndCount(ctx context.Context, d query.Descriptor, skip, limit int) ([]listing.Listing, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.FindAndCount(ctx, d, skip, limit)
}

func (s *timeoutStore) FindByID(ctx context.Context, id string) (listing.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.FindByID(ctx, id)
}

func (s *timeoutStore) Create(ctx context.Context, l listing.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.Create(ctx, l)
}

func (s *timeoutStore) Save(ctx context.Context, l listing.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.Save(ctx, l)
}

func (s *timeoutStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.Delete(ctx, id)
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.base.Ping(ctx)
}
