package repositorycache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/internal/store/bunstore"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/pkg/testsupport"
	"github.com/goliatone/go-listings/query"
)

// newSQLRepository runs the decorator over a real SQLite store.
func newSQLRepository(t *testing.T) (*CachedRepository, *recordingCache) {
	t.Helper()
	db := testsupport.OpenSQLite(t)
	if err := bunstore.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	rc := newRecordingCache(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := New(store.NewExecutor(bunstore.New(db)), NewListingCache(rc, WithCacheLogger(logger)), WithLogger(logger))
	return repo, rc
}

func TestSQLStore_MissingListing(t *testing.T) {
	repo, rc := newSQLRepository(t)
	ctx := context.Background()
	missing := uuid.NewString()

	tests := []struct {
		name string
		run  func() error
	}{
		{"get", func() error {
			_, err := repo.Get(ctx, missing)
			return err
		}},
		{"update", func() error {
			_, err := repo.Update(ctx, "user-1", missing, map[string]any{"price": 1.0})
			return err
		}},
		{"delete", func() error {
			return repo.Delete(ctx, "user-1", missing)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !listing.IsNotFound(err) {
				t.Fatalf("expected not found, got %v", err)
			}
			if listing.IsDependency(err) {
				t.Errorf("missing listing reported as a dependency failure: %v", err)
			}
		})
	}

	if inv := rc.invalidations(); len(inv) != 0 {
		t.Errorf("expected no invalidation for missing listings, got %v", inv)
	}
}

func TestSQLStore_DeletedListingIsNotFound(t *testing.T) {
	repo, _ := newSQLRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "user-1", validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := repo.Delete(ctx, "user-1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.Get(ctx, created.ID); !listing.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "user-1", created.ID); !listing.IsNotFound(err) {
		t.Errorf("expected not found deleting twice, got %v", err)
	}
}

func TestSQLStore_ExactValuesDoNotShareSignatures(t *testing.T) {
	repo, _ := newSQLRepository(t)
	ctx := context.Background()

	a := query.Params{
		"colorTheme": "x},struct:{Field:furnished,Column:furnished,Value:y",
		"furnished":  "z",
	}
	b := query.Params{
		"colorTheme": "x",
		"furnished":  "y},struct:{Field:furnished,Column:furnished,Value:z",
	}

	da, err := repo.builder.Build(a)
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	db, err := repo.builder.Build(b)
	if err != nil {
		t.Fatalf("build b: %v", err)
	}
	if repo.cache.Signature(da) == repo.cache.Signature(db) {
		t.Fatal("distinct queries share one cache signature")
	}

	raw := validCreate()
	raw["colorTheme"] = b["colorTheme"]
	raw["furnished"] = b["furnished"]
	if _, err := repo.Create(ctx, "user-1", raw); err != nil {
		t.Fatalf("create: %v", err)
	}

	pageA, err := repo.Search(ctx, a)
	if err != nil {
		t.Fatalf("search a: %v", err)
	}
	pageB, err := repo.Search(ctx, b)
	if err != nil {
		t.Fatalf("search b: %v", err)
	}
	if pageA.Pagination.Total != 0 || pageB.Pagination.Total != 1 {
		t.Errorf("expected totals 0 and 1, got %d and %d", pageA.Pagination.Total, pageB.Pagination.Total)
	}
}
