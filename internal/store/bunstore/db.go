package bunstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-listings/listing"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to dsn with the named driver and returns a bun handle.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("bunstore: unsupported driver %q", driver)
	}
}

// EnsureSchema creates the listings table and its lookup indexes when they
// do not exist. It is a development bootstrap, not a migration tool.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*listing.Listing)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create listings table: %w", err)
	}

	indexes := map[string][]string{
		"listings_city_idx":       {"city"},
		"listings_price_idx":      {"price"},
		"listings_created_by_idx": {"created_by"},
		"listings_created_at_idx": {"created_at", "id"},
	}
	for name, columns := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*listing.Listing)(nil)).
			Index(name).
			IfNotExists().
			Column(columns...).
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}
