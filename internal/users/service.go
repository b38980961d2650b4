// Package users implements accounts, favorites and recommendations around
// the listing core: registration and login, the owner directory consulted
// when a listing is created, and the per-user listing collections.
package users

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/goliatone/go-listings/internal/auth"
	"github.com/goliatone/go-listings/listing"
)

// SearchLimit caps SearchUsers results.
const SearchLimit = 20

// ListingReader resolves listing ids, normally through the cached read path.
type ListingReader interface {
	Get(ctx context.Context, id string) (listing.Listing, error)
}

// Service holds the user-facing operations.
type Service struct {
	store    *Store
	listings ListingReader
	issuer   *auth.Issuer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store *Store, listings ListingReader, issuer *auth.Issuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		listings: listings,
		issuer:   issuer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "users")
	return s
}

// Credentials is the register and login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) normalized() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

func (c Credentials) validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required, validation.RuneLength(6, 72)),
	)
	if err == nil {
		return nil
	}
	var fields []string
	if errs, ok := err.(validation.Errors); ok {
		for name := range errs {
			fields = append(fields, name)
		}
	}
	return listing.NewValidationError("invalid credentials payload", fields...)
}

// Register creates an account. A taken email is a ConflictError.
func (s *Service) Register(ctx context.Context, c Credentials) (User, error) {
	c = c.normalized()
	if err := c.validate(); err != nil {
		return User{}, err
	}

	if _, err := s.store.FindByEmail(ctx, c.Email); err == nil {
		return User{}, listing.NewConflictError("email already registered")
	} else if !listing.IsNotFound(err) {
		return User{}, err
	}

	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return User{}, listing.WrapDependency(err, "password hashing failed")
	}

	now := listing.Timestamp(s.now())
	u := User{
		ID:           s.newID(),
		Email:        c.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and returns a bearer token. Unknown emails and
// wrong passwords produce the same UnauthorizedError.
func (s *Service) Login(ctx context.Context, c Credentials) (string, error) {
	c = c.normalized()

	u, err := s.store.FindByEmail(ctx, c.Email)
	if listing.IsNotFound(err) {
		return "", listing.NewUnauthorizedError("invalid credentials")
	}
	if err != nil {
		return "", err
	}
	if !auth.CheckPassword(u.PasswordHash, c.Password) {
		return "", listing.NewUnauthorizedError("invalid credentials")
	}

	token, err := s.issuer.Issue(u.ID, u.Email)
	if err != nil {
		return "", listing.WrapDependency(err, "token issuance failed")
	}
	return token, nil
}

// Exists implements the owner directory used by listing creation.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	return s.store.Exists(ctx, userID)
}

// AddFavorite saves listingID for userID. The listing must exist.
func (s *Service) AddFavorite(ctx context.Context, userID, listingID string) error {
	if strings.TrimSpace(listingID) == "" {
		return listing.NewValidationError("propertyId is required", "propertyId")
	}
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return err
	}
	return s.store.AddFavorite(ctx, Favorite{
		UserID:    userID,
		ListingID: listingID,
		CreatedAt: listing.Timestamp(s.now()),
	})
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	return s.store.RemoveFavorite(ctx, userID, listingID)
}

// Favorites returns the listings saved by userID. Listings deleted since
// they were saved are skipped.
func (s *Service) Favorites(ctx context.Context, userID string) ([]listing.Listing, error) {
	ids, err := s.store.FavoriteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

// RecommendRequest is the recommendation payload.
type RecommendRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	ListingID      string `json:"propertyId"`
}

// RecommendResult describes a stored recommendation.
type RecommendResult struct {
	Recipient User            `json:"recipient"`
	Listing   listing.Listing `json:"property"`
}

// Recommend sends listing req.ListingID from senderID to the user
// registered under req.RecipientEmail.
func (s *Service) Recommend(ctx context.Context, senderID string, req RecommendRequest) (RecommendResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	var missing []string
	if email == "" {
		missing = append(missing, "recipientEmail")
	}
	if strings.TrimSpace(req.ListingID) == "" {
		missing = append(missing, "propertyId")
	}
	if len(missing) > 0 {
		return RecommendResult{}, listing.NewValidationError("missing required fields", missing...)
	}

	l, err := s.listings.Get(ctx, req.ListingID)
	if err != nil {
		return RecommendResult{}, err
	}

	recipient, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return RecommendResult{}, err
	}
	if recipient.ID == senderID {
		return RecommendResult{}, listing.NewValidationError("cannot recommend a listing to yourself", "recipientEmail")
	}

	err = s.store.AddRecommendation(ctx, Recommendation{
		RecipientID: recipient.ID,
		ListingID:   l.ID,
		SenderID:    senderID,
		CreatedAt:   listing.Timestamp(s.now()),
	})
	if err != nil {
		return RecommendResult{}, err
	}
	return RecommendResult{Recipient: recipient, Listing: l}, nil
}

// Recommendations returns the listings recommended to userID.
func (s *Service) Recommendations(ctx context.Context, userID string) ([]listing.Listing, error) {
	ids, err := s.store.RecommendedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

// SearchUsers finds users by email fragment, excluding the requester.
func (s *Service) SearchUsers(ctx context.Context, requester, fragment string) ([]User, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, listing.NewValidationError("email query parameter is required", "email")
	}
	return s.store.SearchByEmail(ctx, fragment, requester, SearchLimit)
}

func (s *Service) resolve(ctx context.Context, ids []string) ([]listing.Listing, error) {
	out := make([]listing.Listing, 0, len(ids))
	for _, id := range ids {
		l, err := s.listings.Get(ctx, id)
		if listing.IsNotFound(err) {
			s.logger.DebugContext(ctx, "skipping deleted listing", "listing_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
