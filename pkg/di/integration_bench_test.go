package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-listings/internal/store"
	"github.com/goliatone/go-listings/internal/users"
	"github.com/goliatone/go-listings/query"
)

func seedListings(tb testing.TB, c *Container, n int) []string {
	tb.Helper()
	ctx := context.Background()
	u, err := c.Users().Register(ctx, users.Credentials{Email: "seed@example.com", Password: "correct-horse"})
	if err != nil {
		tb.Fatalf("Register() failed: %v", err)
	}

	ids := make([]string, 0, n)
	cities := []string{"Austin", "Denver", "Boston"}
	for i := 0; i < n; i++ {
		l, err := c.Repository().Create(ctx, u.ID, sampleListing(fmt.Sprintf("Listing %d", i), cities[i%len(cities)]))
		if err != nil {
			tb.Fatalf("Create() failed: %v", err)
		}
		ids = append(ids, l.ID)
	}
	return ids
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestContainer(t, testConfig())
	ids := seedListings(t, c, 12)

	const workers = 8
	const iterations = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers*iterations*2)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < iterations; i++ {
				params := query.Params{"city": []string{"austin", "denver", "boston"}[(worker+i)%3]}
				page, err := c.Repository().Search(ctx, params)
				if err != nil {
					errs <- err
					continue
				}
				if page.Pagination.Total != 4 {
					errs <- fmt.Errorf("worker %d: expected 4 listings, got %d", worker, page.Pagination.Total)
				}
				if _, err := c.Repository().Get(ctx, ids[(worker*iterations+i)%len(ids)]); err != nil {
					errs <- err
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	stats := c.CacheService().Stats()
	if stats.Hits == 0 {
		t.Error("Expected concurrent reads to be served from cache")
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	c := newTestContainer(t, testConfig())
	ids := seedListings(t, c, 3)
	seeded, err := c.Repository().Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ctx := context.Background()
		for i := 0; i < 20; i++ {
			if _, err := c.Repository().Search(ctx, query.Params{}); err != nil {
				t.Errorf("Search() failed: %v", err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			raw := map[string]any{"price": 1000 + i}
			if _, err := c.Repository().Update(ctx, seeded.CreatedBy, ids[0], raw); err != nil {
				t.Errorf("Update() failed: %v", err)
				return
			}
		}
	}()

	wg.Wait()

	// After the writer finishes, reads must observe the last write
	got, err := c.Repository().Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Price != 1004 {
		t.Errorf("Expected final price 1004, got %v", got.Price)
	}
}

func BenchmarkCachedVsBaseRepository(b *testing.B) {
	c := newTestContainer(b, testConfig())
	seedListings(b, c, 50)
	ctx := context.Background()

	builder := query.NewBuilder(query.DefaultOptions())
	params := query.Params{"city": "austin", "sortBy": "price"}
	desc, err := builder.Build(params)
	if err != nil {
		b.Fatalf("Build() failed: %v", err)
	}
	base := store.NewExecutor(c.store)

	b.Run("Base", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := base.Execute(ctx, desc); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Cached", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := c.Repository().Search(ctx, params); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkConcurrentCacheAccess(b *testing.B) {
	c := newTestContainer(b, testConfig())
	ids := seedListings(b, c, 20)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := c.Repository().Get(ctx, ids[i%len(ids)]); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
