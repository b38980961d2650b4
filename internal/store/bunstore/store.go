// Package bunstore implements store.Store on SQL databases (PostgreSQL,
// SQLite) through bun and go-repository-bun.
package bunstore

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

var _ store.Store = (*Store)(nil)

// Store persists listings in a SQL database.
type Store struct {
	db   *bun.DB
	repo repository.Repository[*listing.Listing]
}

// New returns a Store over db.
func New(db *bun.DB) *Store {
	return &Store{db: db, repo: NewRepository(db)}
}

// NewRepository builds the go-repository-bun repository for listings.
func NewRepository(db *bun.DB) repository.Repository[*listing.Listing] {
	return repository.NewRepository[*listing.Listing](db, repository.ModelHandlers[*listing.Listing]{
		NewRecord: func() *listing.Listing {
			return &listing.Listing{}
		},
		GetID: func(l *listing.Listing) uuid.UUID {
			if l == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(l.ID)
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(l *listing.Listing, id uuid.UUID) {
			l.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

// FindAndCount runs the count and the page query in one read-only
// transaction. On PostgreSQL the transaction is REPEATABLE READ so both
// statements see the same snapshot; SQLite serialises transactions already.
func (s *Store) FindAndCount(ctx context.Context, d query.Descriptor, skip, limit int) ([]listing.Listing, int, error) {
	var (
		records []*listing.Listing
		total   int
	)

	err := s.db.RunInTx(ctx, s.snapshotOptions(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		records, total, err = s.repo.ListTx(ctx, tx, Criteria(d, skip, limit)...)
		return err
	})
	if err != nil {
		return nil, 0, listing.WrapDependency(err, "listing query failed")
	}

	rows := make([]listing.Listing, 0, len(records))
	for _, r := range records {
		rows = append(rows, *r)
	}
	return rows, total, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (listing.Listing, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return listing.Listing{}, listing.NewNotFoundError("listing", id)
		}
		return listing.Listing{}, listing.WrapDependency(err, "listing lookup failed")
	}
	return *record, nil
}

func (s *Store) Create(ctx context.Context, l listing.Listing) error {
	if _, err := s.repo.Create(ctx, &l); err != nil {
		return listing.WrapDependency(err, "listing insert failed")
	}
	return nil
}

// Save overwrites every column of the row with l's id.
func (s *Store) Save(ctx context.Context, l listing.Listing) error {
	res, err := s.db.NewUpdate().Model(&l).WherePK().Exec(ctx)
	if err != nil {
		return listing.WrapDependency(err, "listing update failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return listing.NewNotFoundError("listing", l.ID)
	}
	return nil
}

// Delete removes the row with id. A missing row is a NotFoundError.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model(&listing.Listing{ID: id}).WherePK().Exec(ctx)
	if err != nil {
		return listing.WrapDependency(err, "listing delete failed")
	}
	if err := repository.SQLExpectedCount(res, 1); err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return listing.NewNotFoundError("listing", id)
		}
		return listing.WrapDependency(err, "listing delete failed")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return listing.WrapDependency(err, "database unreachable")
	}
	return nil
}

func (s *Store) snapshotOptions() *sql.TxOptions {
	if s.db.Dialect().Name() == dialect.PG {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// isNotFound matches go-repository-bun's database_not_found category as
// well as plain sql.ErrNoRows and go-errors not found errors.
func isNotFound(err error) bool {
	if repository.IsRecordNotFound(err) {
		return true
	}
	return goerrors.IsCategory(err, goerrors.CategoryNotFound)
}
