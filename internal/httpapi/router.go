// Package httpapi exposes listings, accounts, favorites and recommendations
// over HTTP with chi.
//
// Errors are answered as {"message": ..., "fields": [...]} with the status
// given by the error kind; fields is only present on 400 responses.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/goliatone/go-listings/internal/auth"
	"github.com/goliatone/go-listings/internal/users"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// Listings is the cached listing repository.
type Listings interface {
	Search(ctx context.Context, params query.Params) (listing.Page, error)
	Get(ctx context.Context, id string) (listing.Listing, error)
	Create(ctx context.Context, requester string, raw map[string]any) (listing.Listing, error)
	Update(ctx context.Context, requester, id string, raw map[string]any) (listing.Listing, error)
	Delete(ctx context.Context, requester, id string) error
}

// Accounts is the user service.
type Accounts interface {
	Register(ctx context.Context, c users.Credentials) (users.User, error)
	Login(ctx context.Context, c users.Credentials) (string, error)
	AddFavorite(ctx context.Context, userID, listingID string) error
	RemoveFavorite(ctx context.Context, userID, listingID string) error
	Favorites(ctx context.Context, userID string) ([]listing.Listing, error)
	Recommend(ctx context.Context, senderID string, req users.RecommendRequest) (users.RecommendResult, error)
	Recommendations(ctx context.Context, userID string) ([]listing.Listing, error)
	SearchUsers(ctx context.Context, requester, fragment string) ([]users.User, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Listings Listings
	Accounts Accounts
	Tokens   TokenVerifier
	Health   Pinger
	Logger   *slog.Logger
}

// NewHandler returns the instrumented HTTP handler for every route.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "http")

	h := &handler{
		listings: deps.Listings,
		accounts: deps.Accounts,
		health:   deps.Health,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(deps.Tokens, logger))

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Get("/properties", h.searchListings)
		r.Get("/properties/{id}", h.getListing)

		r.Group(func(r chi.Router) {
			r.Use(requireRequester(logger))

			r.Post("/properties", h.createListing)
			r.Put("/properties/{id}", h.updateListing)
			r.Delete("/properties/{id}", h.deleteListing)

			r.Get("/favorites", h.listFavorites)
			r.Post("/favorites", h.addFavorite)
			r.Delete("/favorites/{id}", h.removeFavorite)

			r.Get("/recommendations", h.listRecommendations)
			r.Post("/recommendations", h.recommend)
			r.Get("/recommendations/search", h.searchUsers)
		})
	})

	return otelhttp.NewHandler(r, "listingsd",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type handler struct {
	listings Listings
	accounts Accounts
	health   Pinger
	logger   *slog.Logger
}
