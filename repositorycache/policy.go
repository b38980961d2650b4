package repositorycache

import (
	"context"
	"errors"
)

// Mutation identifies the kind of write that succeeded.
type Mutation string

const (
	Created Mutation = "created"
	Updated Mutation = "updated"
	Deleted Mutation = "deleted"
)

// InvalidationPolicy removes cache entries made stale by a successful
// mutation of listing id.
type InvalidationPolicy interface {
	Invalidate(ctx context.Context, kind Mutation, id string) error
}

// PolicyFunc adapts a function to InvalidationPolicy.
type PolicyFunc func(ctx context.Context, kind Mutation, id string) error

func (f PolicyFunc) Invalidate(ctx context.Context, kind Mutation, id string) error {
	return f(ctx, kind, id)
}

// FullSweep drops every cached result page on any mutation, and the cached
// entity on update and delete. A new or changed listing can enter or leave
// any page, so lists are never patched in place.
type FullSweep struct {
	cache *ListingCache
}

func NewFullSweep(c *ListingCache) *FullSweep {
	return &FullSweep{cache: c}
}

func (p *FullSweep) Invalidate(ctx context.Context, kind Mutation, id string) error {
	switch kind {
	case Created:
		return p.invalidateAfterCreate(ctx)
	case Updated, Deleted:
		return p.invalidateAfterChange(ctx, id)
	default:
		return errors.New("repositorycache: unknown mutation " + string(kind))
	}
}

func (p *FullSweep) invalidateAfterCreate(ctx context.Context) error {
	_, err := p.cache.InvalidateAllLists(ctx)
	return err
}

// invalidateAfterChange attempts both deletions even if the first fails.
func (p *FullSweep) invalidateAfterChange(ctx context.Context, id string) error {
	entityErr := p.cache.InvalidateEntity(ctx, id)
	_, listErr := p.cache.InvalidateAllLists(ctx)
	return errors.Join(entityErr, listErr)
}
