package store

import (
	"context"
	"io"
	"log/slog"

	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// Executor runs descriptors against a Store.
type Executor struct {
	store    Store
	maxLimit int
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxLimit caps the page size regardless of what the descriptor asks for.
func WithMaxLimit(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExecutor(s Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    s,
		maxLimit: query.MaxLimit,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// Store returns the underlying store.
func (e *Executor) Store() Store {
	return e.store
}

// Execute returns the page of listings selected by d.
func (e *Executor) Execute(ctx context.Context, d query.Descriptor) (listing.Page, error) {
	page := d.Page
	if page < 1 {
		page = query.DefaultPage
	}
	limit := d.Limit
	if limit < 1 {
		limit = query.DefaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}
	skip := (page - 1) * limit

	rows, total, err := e.store.FindAndCount(ctx, d, skip, limit)
	if err != nil {
		e.logger.Error("listing query failed", "page", page, "limit", limit, "error", err)
		return listing.Page{}, listing.WrapDependency(err, "listing store unavailable")
	}

	result := listing.Page{
		Listings:   rows,
		Pagination: listing.NewPagination(total, page, limit),
	}
	result.Normalize()
	return result, nil
}
