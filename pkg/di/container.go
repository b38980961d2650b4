package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-listings/cache"
	"github.com/goliatone/go-listings/internal/auth"
	"github.com/goliatone/go-listings/internal/broadcast"
	"github.com/goliatone/go-listings/internal/config"
	"github.com/goliatone/go-listings/internal/httpapi"
	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/internal/store/bunstore"
	"github.com/goliatone/go-listings/internal/store/mongostore"
	"github.com/goliatone/go-listings/internal/users"
	"github.com/goliatone/go-listings/query"
	"github.com/goliatone/go-listings/repositorycache"
)

// Container builds every long-lived component once and hands out the same
// instances: store handles, the cache layer, the cached repository and the
// user service. Close releases them in reverse construction order.
type Container struct {
	cfg      config.Config
	logger   *slog.Logger
	instance string

	db      *bun.DB
	usersDB *bun.DB
	base    store.Store
	store   store.Store

	cacheService *cache.Layer
	listingCache *repositorycache.ListingCache
	repo         *repositorycache.CachedRepository
	issuer       *auth.Issuer
	users        *users.Service

	bus      *broadcast.Bus
	listener *broadcast.Listener

	closers []func() error
}

// Option configures a Container.
type Option func(*Container)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInstanceID names this process in invalidation broadcasts. Defaults to
// a random UUID.
func WithInstanceID(id string) Option {
	return func(c *Container) {
		if id != "" {
			c.instance = id
		}
	}
}

// NewContainer validates cfg and wires the service. Anything opened before
// a failure is closed again.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		instance: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	var err error
	c.base, err = c.openStores(ctx)
	if err != nil {
		return err
	}
	c.store = store.WithTimeout(c.base, c.cfg.Store.Timeout)

	exec := store.NewExecutor(c.store,
		store.WithMaxLimit(c.cfg.Query.MaxLimit),
		store.WithLogger(c.logger),
	)

	c.cacheService, err = cache.NewCacheService(c.cfg.CacheBackend(),
		cache.WithLogger(c.logger),
		cache.WithTimeout(c.cfg.Cache.Timeout),
	)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	c.closers = append(c.closers, c.cacheService.Close)

	c.listingCache = repositorycache.NewListingCache(c.cacheService,
		repositorycache.WithNamespace(c.cfg.Cache.Namespace),
		repositorycache.WithListTTL(c.cfg.Cache.ListTTL),
		repositorycache.WithEntityTTL(c.cfg.Cache.EntityTTL),
		repositorycache.WithCacheLogger(c.logger),
	)

	policy, err := c.invalidationPolicy()
	if err != nil {
		return err
	}

	c.issuer, err = auth.NewIssuer(c.cfg.Auth.Secret, c.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	userStore := users.NewStore(c.usersDB)
	c.repo = repositorycache.New(exec, c.listingCache,
		repositorycache.WithBuilder(query.NewBuilder(query.Options{
			Strict:       c.cfg.Query.Strict,
			DefaultLimit: c.cfg.Query.DefaultLimit,
			MaxLimit:     c.cfg.Query.MaxLimit,
		})),
		repositorycache.WithPolicy(policy),
		repositorycache.WithOwners(userStore),
		repositorycache.WithLogger(c.logger),
	)
	c.users = users.NewService(userStore, c.repo, c.issuer, users.WithLogger(c.logger))
	return nil
}

// openStores opens the listing store and the SQL database holding accounts.
// SQL drivers share one database; MongoDB listings keep accounts in SQLite.
func (c *Container) openStores(ctx context.Context) (store.Store, error) {
	switch c.cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, c.cfg.Store.URL)
		if err != nil {
			return nil, err
		}
		ms := mongostore.New(client, c.cfg.Store.MongoDatabase, "")
		c.closers = append(c.closers, ms.Close)

		usersDB, err := bunstore.Open(bunstore.DriverSQLite, c.cfg.Store.UsersURL)
		if err != nil {
			return nil, fmt.Errorf("users database: %w", err)
		}
		c.usersDB = usersDB
		c.closers = append(c.closers, usersDB.Close)
		return ms, nil

	default:
		db, err := bunstore.Open(c.cfg.Store.Driver, c.cfg.Store.URL)
		if err != nil {
			return nil, err
		}
		c.db, c.usersDB = db, db
		c.closers = append(c.closers, db.Close)
		return bunstore.New(db), nil
	}
}

// invalidationPolicy returns the local full sweep, fanned out to other
// instances when a broker is configured.
func (c *Container) invalidationPolicy() (repositorycache.InvalidationPolicy, error) {
	local := repositorycache.NewFullSweep(c.listingCache)
	if c.cfg.Broadcast.URL == "" {
		return local, nil
	}

	bus, err := broadcast.Dial(c.cfg.Broadcast.URL, c.cfg.Broadcast.Exchange)
	if err != nil {
		return nil, err
	}
	c.bus = bus
	c.closers = append(c.closers, bus.Close)
	c.listener = broadcast.NewListener(local, c.instance, c.logger)
	return broadcast.NewPolicy(local, bus.Publisher(c.instance), c.logger), nil
}

// EnsureSchema creates the SQL tables. Listings in MongoDB get their
// indexes instead.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if c.db != nil {
		if err := bunstore.EnsureSchema(ctx, c.db); err != nil {
			return err
		}
	}
	if ms, ok := c.base.(*mongostore.Store); ok {
		if err := ms.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return users.EnsureSchema(ctx, c.usersDB)
}

// Ping checks the listing store and, when separate, the accounts database.
func (c *Container) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return err
	}
	if c.usersDB != c.db {
		if err := c.usersDB.PingContext(ctx); err != nil {
			return fmt.Errorf("users database: %w", err)
		}
	}
	return nil
}

// RunListener applies invalidations from other instances until ctx is done.
// It returns immediately when no broker is configured.
func (c *Container) RunListener(ctx context.Context) error {
	if c.listener == nil {
		return nil
	}
	return c.listener.Run(ctx, c.bus.Deliveries())
}

// Handler returns the HTTP API.
func (c *Container) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Listings: c.repo,
		Accounts: c.users,
		Tokens:   c.issuer,
		Health:   c,
		Logger:   c.logger,
	})
}

func (c *Container) Config() config.Config { return c.cfg }
func (c *Container) Logger() *slog.Logger { return c.logger }
func (c *Container) InstanceID() string { return c.instance }
func (c *Container) CacheService() *cache.Layer { return c.cacheService }
func (c *Container) ListingCache() *repositorycache.ListingCache { return c.listingCache }
func (c *Container) Repository() *repositorycache.CachedRepository { return c.repo }
func (c *Container) Users() *users.Service { return c.users }
func (c *Container) Issuer() *auth.Issuer { return c.issuer }

// Close releases resources in reverse order and reports every failure.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
