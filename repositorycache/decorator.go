package repositorycache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

const tracerName = "github.com/goliatone/go-listings/repositorycache"

// DefaultInvalidationTimeout bounds a post-commit invalidation.
const DefaultInvalidationTimeout = 5 * time.Second

// OwnerDirectory resolves listing owners. It is consulted on create so a
// listing can never reference a user that does not exist.
type OwnerDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// CachedRepository serves listing reads through a ListingCache and
// coordinates writes: authorize, persist, invalidate, respond.
type CachedRepository struct {
	exec    *store.Executor
	store   store.Store
	cache   *ListingCache
	builder *query.Builder
	policy  InvalidationPolicy
	owners  OwnerDirectory
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	invalidationTimeout time.Duration
}

// Option configures a CachedRepository.
type Option func(*CachedRepository)

// WithBuilder sets the builder used by Search.
func WithBuilder(b *query.Builder) Option {
	return func(r *CachedRepository) {
		if b != nil {
			r.builder = b
		}
	}
}

// WithPolicy replaces the default FullSweep invalidation policy.
func WithPolicy(p InvalidationPolicy) Option {
	return func(r *CachedRepository) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithOwners enables the owner existence check on create.
func WithOwners(d OwnerDirectory) Option {
	return func(r *CachedRepository) { r.owners = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *CachedRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *CachedRepository) {
		if t != nil {
			r.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *CachedRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInvalidationTimeout bounds each invalidation run after a write.
func WithInvalidationTimeout(d time.Duration) Option {
	return func(r *CachedRepository) {
		if d > 0 {
			r.invalidationTimeout = d
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(r *CachedRepository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// New returns a CachedRepository reading through lc and writing to the
// executor's store.
func New(exec *store.Executor, lc *ListingCache, opts ...Option) *CachedRepository {
	r := &CachedRepository{
		exec:    exec,
		store:   exec.Store(),
		cache:   lc,
		builder: query.NewBuilder(query.DefaultOptions()),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		newID:   uuid.NewString,

		invalidationTimeout: DefaultInvalidationTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy = NewFullSweep(lc)
	}
	r.logger = r.logger.With("component", "listings")
	return r
}

// Search builds a descriptor from request parameters and returns the
// matching page.
func (r *CachedRepository) Search(ctx context.Context, params query.Params) (listing.Page, error) {
	d, err := r.builder.Build(params)
	if err != nil {
		return listing.Page{}, err
	}
	return r.List(ctx, d)
}

// List returns the page selected by d, from the cache when possible.
func (r *CachedRepository) List(ctx context.Context, d query.Descriptor) (page listing.Page, err error) {
	ctx, span := r.tracer.Start(ctx, "listings.list", trace.WithAttributes(
		attribute.Int("listings.page", d.Page),
		attribute.Int("listings.limit", d.Limit),
	))
	defer func() { finish(span, err) }()

	return r.cache.ListOrFetch(ctx, d, func(ctx context.Context) (listing.Page, error) {
		span.AddEvent("cache miss")
		return r.exec.Execute(ctx, d)
	})
}

// Get returns listing id, from the cache when possible. Missing listings
// are not cached.
func (r *CachedRepository) Get(ctx context.Context, id string) (l listing.Listing, err error) {
	ctx, span := r.tracer.Start(ctx, "listings.get", trace.WithAttributes(attribute.String("listing.id", id)))
	defer func() { finish(span, err) }()

	return r.cache.EntityOrFetch(ctx, id, func(ctx context.Context) (listing.Listing, error) {
		span.AddEvent("cache miss")
		return r.store.FindByID(ctx, id)
	})
}

// Create validates raw, persists a new listing owned by requester and
// invalidates cached pages.
func (r *CachedRepository) Create(ctx context.Context, requester string, raw map[string]any) (l listing.Listing, err error) {
	ctx, span := r.tracer.Start(ctx, "listings.create", trace.WithAttributes(attribute.String("requester", requester)))
	defer func() { finish(span, err) }()

	if requester == "" {
		return listing.Listing{}, listing.NewForbiddenError("a requester is required to create listings")
	}

	patch, err := listing.ParsePatch(raw)
	if err != nil {
		return listing.Listing{}, err
	}
	if missing := patch.MissingRequired(); len(missing) > 0 {
		return listing.Listing{}, listing.NewValidationError("missing required fields", missing...)
	}

	if r.owners != nil {
		ok, err := r.owners.Exists(ctx, requester)
		if err != nil {
			return listing.Listing{}, listing.WrapDependency(err, "owner lookup failed")
		}
		if !ok {
			return listing.Listing{}, listing.NewNotFoundError("user", requester)
		}
	}

	now := listing.Timestamp(r.now())
	l = listing.Listing{
		ID:        r.newID(),
		CreatedBy: requester,
		CreatedAt: now,
		UpdatedAt: now,
	}
	patch.Apply(&l)
	if err := listing.Validate(l); err != nil {
		return listing.Listing{}, err
	}

	if err := r.store.Create(ctx, l); err != nil {
		r.logger.ErrorContext(ctx, "listing create failed", "requester", requester, "error", err)
		return listing.Listing{}, listing.WrapDependency(err, "listing store unavailable")
	}

	span.SetAttributes(attribute.String("listing.id", l.ID))
	r.invalidate(ctx, Created, l.ID)
	return l, nil
}

// Update merges raw into listing id when requester owns it.
func (r *CachedRepository) Update(ctx context.Context, requester, id string, raw map[string]any) (l listing.Listing, err error) {
	ctx, span := r.tracer.Start(ctx, "listings.update", trace.WithAttributes(
		attribute.String("requester", requester),
		attribute.String("listing.id", id),
	))
	defer func() { finish(span, err) }()

	patch, err := listing.ParsePatch(raw)
	if err != nil {
		return listing.Listing{}, err
	}

	l, err = r.authorize(ctx, requester, id)
	if err != nil {
		return listing.Listing{}, err
	}

	patch.Apply(&l)
	l.UpdatedAt = listing.Timestamp(r.now())
	if err := listing.Validate(l); err != nil {
		return listing.Listing{}, err
	}

	if err := r.store.Save(ctx, l); err != nil {
		r.logger.ErrorContext(ctx, "listing update failed", "listing_id", id, "error", err)
		return listing.Listing{}, listing.WrapDependency(err, "listing store unavailable")
	}

	r.invalidate(ctx, Updated, id)
	return l, nil
}

// Delete removes listing id when requester owns it.
func (r *CachedRepository) Delete(ctx context.Context, requester, id string) (err error) {
	ctx, span := r.tracer.Start(ctx, "listings.delete", trace.WithAttributes(
		attribute.String("requester", requester),
		attribute.String("listing.id", id),
	))
	defer func() { finish(span, err) }()

	if _, err := r.authorize(ctx, requester, id); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, id); err != nil {
		r.logger.ErrorContext(ctx, "listing delete failed", "listing_id", id, "error", err)
		return listing.WrapDependency(err, "listing store unavailable")
	}

	r.invalidate(ctx, Deleted, id)
	return nil
}

// authorize loads listing id from the store, bypassing the cache, and
// checks that requester created it.
func (r *CachedRepository) authorize(ctx context.Context, requester, id string) (listing.Listing, error) {
	l, err := r.store.FindByID(ctx, id)
	if err != nil {
		return listing.Listing{}, listing.WrapDependency(err, "listing store unavailable")
	}
	if !l.OwnedBy(requester) {
		return listing.Listing{}, listing.NewForbiddenError("only the owner may modify listing " + id)
	}
	l.Normalize()
	return l, nil
}

// invalidate runs the policy. The mutation already succeeded, so the run is
// detached from the caller's cancellation and bounded by its own timeout.
// Failures are logged and TTL bounds the staleness.
func (r *CachedRepository) invalidate(ctx context.Context, kind Mutation, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.invalidationTimeout)
	defer cancel()

	if err := r.policy.Invalidate(ctx, kind, id); err != nil {
		r.logger.WarnContext(ctx, "cache invalidation failed",
			"mutation", string(kind),
			"listing_id", id,
			"error", err,
		)
	}
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, listing.Message(err))
	}
	span.End()
}
