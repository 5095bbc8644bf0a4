package matchcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Cache stores one record per catalog item.
type Cache interface {
	// Get returns the record for itemID, or nil when none exists.
	Get(ctx context.Context, itemID int64) (*Record, error)
	// List returns every record ordered by item id.
	List(ctx context.Context) ([]Record, error)
	// Begin opens a write batch. Callers must Commit or Rollback it.
	Begin(ctx context.Context) (Batch, error)
	// Prune deletes records whose item id is not in keep and returns the
	// number removed.
	Prune(ctx context.Context, keep []int64) (int64, error)
	Close() error
}

// Batch groups upserts into one transaction.
type Batch interface {
	// Upsert validates rec and inserts or replaces the stored record.
	Upsert(ctx context.Context, rec Record) error
	Commit(ctx context.Context) error
	// Rollback discards the batch. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN    string
	Logger *slog.Logger
}

// Open returns the backend named by opts.Driver, applying pending migrations.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, opts.Path, opts.Logger)
	case DriverPostgres, "postgresql":
		return OpenPostgres(ctx, opts.DSN, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}
