package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-listings/listing"
)

func TestLoadFixture(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if result := LoadFixture(t, testFile); string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	data := `[{"id":"a","title":"Loft","type":"Apartment","state":"Texas","city":"Austin",` +
		`"listingType":" Rent ","createdAt":"2024-03-01T10:00:00+02:00"}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	rows := LoadListings(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(rows))
	}
	l := rows[0]
	if l.Category != "Apartment" || l.Region != "Texas" {
		t.Errorf("public names not mapped: %+v", l)
	}
	if l.ListingType != listing.TypeRent {
		t.Errorf("expected normalized listing type, got %q", l.ListingType)
	}
	if l.CreatedAt.Location() != time.UTC || l.CreatedAt.Hour() != 8 {
		t.Errorf("expected UTC timestamp, got %v", l.CreatedAt)
	}
}

func TestWriteGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.golden")
	WriteGolden(t, path, []byte("payload"))

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("golden file not written: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("expected payload, got %q", got)
	}
}

func TestCompareWithGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "page.json")

	// first run creates the file
	CompareWithGoldenJSON(t, path, map[string]int{"total": 12})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected golden file to be created: %v", err)
	}

	// second run compares against it
	CompareWithGoldenJSON(t, path, map[string]int{"total": 12})
}

func TestPaths(t *testing.T) {
	if got := FixturePath("a.json"); got != filepath.Join("testdata", "a.json") {
		t.Errorf("unexpected fixture path %s", got)
	}
	if got := GoldenPath("a.json"); got != filepath.Join("testdata", "golden", "a.json") {
		t.Errorf("unexpected golden path %s", got)
	}
}

func TestOpenSQLite_Isolated(t *testing.T) {
	ctx := context.Background()
	a := OpenSQLite(t)
	b := OpenSQLite(t)

	if _, err := a.ExecContext(ctx, "CREATE TABLE marker (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := b.ExecContext(ctx, "SELECT * FROM marker"); err == nil {
		t.Error("expected databases to be independent")
	}
}
