package matchcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cardsync/internal/logging"
)

const recordColumns = "item_id, message_id, uploaded_at, season, status"

// SQLiteCache stores records in a local SQLite database.
type SQLiteCache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens or creates the cache database at path and applies
// migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteCache, error) {
	if path == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	cache := &SQLiteCache{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "matchcache"),
	}
	if err := cache.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// Path returns the database file location.
func (c *SQLiteCache) Path() string { return c.path }

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get fetches the record for itemID.
func (c *SQLiteCache) Get(ctx context.Context, itemID int64) (*Record, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM item_metadata WHERE item_id = ?`, itemID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", itemID, err)
	}
	return &rec, nil
}

// List returns all records ordered by item id.
func (c *SQLiteCache) List(ctx context.Context) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM item_metadata ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Begin starts a write transaction.
func (c *SQLiteCache) Begin(ctx context.Context) (Batch, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &sqliteBatch{tx: tx}, nil
}

// Prune removes records for items missing from keep.
func (c *SQLiteCache) Prune(ctx context.Context, keep []int64) (int64, error) {
	keepSet := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	rows, err := c.db.QueryContext(ctx, `SELECT item_id FROM item_metadata ORDER BY item_id`)
	if err != nil {
		return 0, fmt.Errorf("list item ids: %w", err)
	}
	var orphans []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan item id: %w", err)
		}
		if _, ok := keepSet[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate item ids: %w", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var removed int64
	for start := 0; start < len(orphans); start += pruneChunk {
		chunk := orphans[start:min(start+pruneChunk, len(orphans))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM item_metadata WHERE item_id IN (`+makePlaceholders(len(chunk))+`)`, args...)
		if err != nil {
			return 0, fmt.Errorf("delete orphans: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	c.logger.Debug("pruned orphan records", logging.Int64("removed", removed))
	return removed, nil
}

// pruneChunk stays well under SQLite's bound-parameter limit.
const pruneChunk = 500

type sqliteBatch struct {
	tx *sql.Tx
}

func (b *sqliteBatch) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := b.tx.ExecContext(
		ctx,
		`INSERT INTO item_metadata (item_id, message_id, uploaded_at, season, status, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
             message_id = excluded.message_id,
             uploaded_at = excluded.uploaded_at,
             season = excluded.season,
             status = excluded.status,
             updated_at = excluded.updated_at`,
		rec.ItemID,
		nullableInt64(rec.MessageID),
		nullableTime(rec.UploadedAt),
		nullableInt(rec.Season),
		string(rec.Status),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.ItemID, err)
	}
	return nil
}

func (b *sqliteBatch) Commit(context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *sqliteBatch) Rollback(context.Context) error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}
