package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-listings/listing"
)

// User is a registered account. Emails are stored lower-cased.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Favorite marks a listing saved by a user.
type Favorite struct {
	bun.BaseModel `bun:"table:favorites,alias:f"`

	UserID    string    `bun:"user_id,pk"`
	ListingID string    `bun:"listing_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Recommendation records a listing one user sent to another. A listing is
// recommended to a recipient at most once.
type Recommendation struct {
	bun.BaseModel `bun:"table:recommendations,alias:r"`

	RecipientID string    `bun:"recipient_id,pk"`
	ListingID   string    `bun:"listing_id,pk"`
	SenderID    string    `bun:"sender_id,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// Store persists users, favorites and recommendations through bun.
type Store struct {
	db bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the user tables when they do not exist.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []any{(*User)(nil), (*Favorite)(nil), (*Recommendation)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u User) error {
	if _, err := s.db.NewInsert().Model(&u).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return listing.NewConflictError("email already registered")
		}
		return listing.WrapDependency(err, "user insert failed")
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.NewSelect().Model(&u).Where("? = ?", bun.Ident("email"), email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, listing.NewNotFoundError("user", email)
	}
	if err != nil {
		return User{}, listing.WrapDependency(err, "user lookup failed")
	}
	return u, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.NewSelect().Model(&u).Where("? = ?", bun.Ident("id"), id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, listing.NewNotFoundError("user", id)
	}
	if err != nil {
		return User{}, listing.WrapDependency(err, "user lookup failed")
	}
	return u, nil
}

// Exists reports whether a user with id is registered.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.db.NewSelect().Model((*User)(nil)).Where("? = ?", bun.Ident("id"), id).Exists(ctx)
	if err != nil {
		return false, listing.WrapDependency(err, "user lookup failed")
	}
	return ok, nil
}

// SearchByEmail returns up to limit users whose email contains fragment,
// excluding the user with id exclude.
func (s *Store) SearchByEmail(ctx context.Context, fragment, exclude string, limit int) ([]User, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(fragment)) + "%"

	var found []User
	q := s.db.NewSelect().
		Model(&found).
		Where("LOWER(?) LIKE ? ESCAPE '!'", bun.Ident("email"), pattern).
		OrderExpr("? ASC", bun.Ident("email")).
		Limit(limit)
	if exclude != "" {
		q = q.Where("? <> ?", bun.Ident("id"), exclude)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, listing.WrapDependency(err, "user search failed")
	}
	return found, nil
}

// AddFavorite saves listingID for userID. Saving twice is a no-op.
func (s *Store) AddFavorite(ctx context.Context, f Favorite) error {
	if _, err := s.db.NewInsert().Model(&f).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return listing.WrapDependency(err, "favorite insert failed")
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	_, err := s.db.NewDelete().
		Model((*Favorite)(nil)).
		Where("? = ?", bun.Ident("user_id"), userID).
		Where("? = ?", bun.Ident("listing_id"), listingID).
		Exec(ctx)
	if err != nil {
		return listing.WrapDependency(err, "favorite delete failed")
	}
	return nil
}

// FavoriteIDs returns the listing ids saved by userID, oldest first.
func (s *Store) FavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*Favorite)(nil)).
		Column("listing_id").
		Where("? = ?", bun.Ident("user_id"), userID).
		OrderExpr("? ASC, ? ASC", bun.Ident("created_at"), bun.Ident("listing_id")).
		Scan(ctx, &ids)
	if err != nil {
		return nil, listing.WrapDependency(err, "favorite lookup failed")
	}
	return ids, nil
}

func (s *Store) AddRecommendation(ctx context.Context, r Recommendation) error {
	if _, err := s.db.NewInsert().Model(&r).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return listing.NewConflictError("listing already recommended to this user")
		}
		return listing.WrapDependency(err, "recommendation insert failed")
	}
	return nil
}

// RecommendedIDs returns the listing ids recommended to recipientID, oldest
// first.
func (s *Store) RecommendedIDs(ctx context.Context, recipientID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*Recommendation)(nil)).
		Column("listing_id").
		Where("? = ?", bun.Ident("recipient_id"), recipientID).
		OrderExpr("? ASC, ? ASC", bun.Ident("created_at"), bun.Ident("listing_id")).
		Scan(ctx, &ids)
	if err != nil {
		return nil, listing.WrapDependency(err, "recommendation lookup failed")
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
