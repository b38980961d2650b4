package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

type findCall struct {
	skip, limit int
}

type fakeStore struct {
	mu       sync.Mutex
	rows     []listing.Listing
	total    int
	err      error
	finds    []findCall
	deadline bool
}

func (f *fakeStore) FindAndCount(ctx context.Context, d query.Descriptor, skip, limit int) ([]listing.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, findCall{skip, limit})
	_, f.deadline = ctx.Deadline()
	return f.rows, f.total, f.err
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (listing.Listing, error) {
	_, f.deadline = ctx.Deadline()
	return listing.Listing{}, listing.NewNotFoundError("listing", id)
}

func (f *fakeStore) Create(ctx context.Context, l listing.Listing) error { return nil }
func (f *fakeStore) Save(ctx context.Context, l listing.Listing) error   { return nil }
func (f *fakeStore) Delete(ctx context.Context, id string) error         { return nil }
func (f *fakeStore) Ping(ctx context.Context) error                      { return nil }

func TestExecutor_Pagination(t *testing.T) {
	tests := []struct {
		name     string
		d        query.Descriptor
		total    int
		maxLimit int
		wantCall findCall
		want     listing.Pagination
	}{
		{
			name:     "second page of five",
			d:        query.Descriptor{Page: 2, Limit: 5},
			total:    12,
			wantCall: findCall{skip: 5, limit: 5},
			want:     listing.Pagination{Total: 12, Page: 2, Limit: 5, Pages: 3},
		},
		{
			name:     "first page defaults",
			d:        query.Descriptor{},
			total:    3,
			wantCall: findCall{skip: 0, limit: 10},
			want:     listing.Pagination{Total: 3, Page: 1, Limit: 10, Pages: 1},
		},
		{
			name:     "limit capped at max",
			d:        query.Descriptor{Page: 3, Limit: 1000},
			total:    250,
			maxLimit: 50,
			wantCall: findCall{skip: 100, limit: 50},
			want:     listing.Pagination{Total: 250, Page: 3, Limit: 50, Pages: 5},
		},
		{
			name:     "page beyond the end",
			d:        query.Descriptor{Page: 9, Limit: 10},
			total:    12,
			wantCall: findCall{skip: 80, limit: 10},
			want:     listing.Pagination{Total: 12, Page: 9, Limit: 10, Pages: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{total: tt.total}
			var opts []ExecutorOption
			if tt.maxLimit > 0 {
				opts = append(opts, WithMaxLimit(tt.maxLimit))
			}

			page, err := NewExecutor(fs, opts...).Execute(context.Background(), tt.d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(fs.finds) != 1 || fs.finds[0] != tt.wantCall {
				t.Errorf("expected store call %+v, got %+v", tt.wantCall, fs.finds)
			}
			if page.Pagination != tt.want {
				t.Errorf("expected pagination %+v, got %+v", tt.want, page.Pagination)
			}
			if page.Listings == nil {
				t.Error("expected empty page to carry a non-nil slice")
			}
		})
	}
}

func TestExecutor_NormalizesRows(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	fs := &fakeStore{
		rows:  []listing.Listing{{ID: "1", CreatedAt: time.Date(2024, 1, 1, 6, 0, 0, 0, loc)}},
		total: 1,
	}

	page, err := NewExecutor(fs).Execute(context.Background(), query.Descriptor{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := page.Listings[0].CreatedAt; got.Location() != time.UTC || got.Hour() != 12 {
		t.Errorf("expected UTC timestamp 12:00, got %v", got)
	}
}

func TestExecutor_StoreFailure(t *testing.T) {
	fs := &fakeStore{err: errors.New("connection reset by peer")}

	_, err := NewExecutor(fs).Execute(context.Background(), query.Descriptor{Page: 1, Limit: 10})
	if !listing.IsDependency(err) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if listing.Message(err) == "connection reset by peer" {
		t.Error("expected driver detail to stay out of the client message")
	}
}

func TestWithTimeout(t *testing.T) {
	fs := &fakeStore{}

	if got := WithTimeout(fs, 0); got != Store(fs) {
		t.Error("expected zero timeout to return the store unchanged")
	}

	timed := WithTimeout(fs, time.Second)
	if _, _, err := timed.FindAndCount(context.Background(), query.Descriptor{}, 0, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fs.deadline {
		t.Error("expected FindAndCount to run with a deadline")
	}

	fs.deadline = false
	if _, err := timed.FindByID(context.Background(), "x"); !listing.IsNotFound(err) {
		t.Errorf("expected not found to pass through, got %v", err)
	}
	if !fs.deadline {
		t.Error("expected FindByID to run with a deadline")
	}
}
