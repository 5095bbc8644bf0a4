package matchcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cardsync/internal/logging"
)

// PostgresCache stores records in PostgreSQL.
type PostgresCache struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to dsn, migrates the schema and returns a cache that
// owns the pool.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresCache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres cache dsn is required")
	}
	logger = logging.NewComponentLogger(logger, "matchcache")

	if err := migratePostgres(dsn, logger); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pingPool(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresCache{pool: pool, logger: logger}, nil
}

func pingPool(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func migratePostgres(dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrationFS, "migrations/postgres")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("cache schema version %d is dirty", version)
	}
	logger.Debug("cache schema ready", logging.Int64("schema_version", int64(version)))
	return nil
}

// Close releases the pool.
func (c *PostgresCache) Close() error {
	if c == nil || c.pool == nil {
		return nil
	}
	c.pool.Close()
	return nil
}

// Get fetches the record for itemID.
func (c *PostgresCache) Get(ctx context.Context, itemID int64) (*Record, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM item_metadata WHERE item_id = $1`, itemID)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", itemID, err)
	}
	return &rec, nil
}

// List returns all records ordered by item id.
func (c *PostgresCache) List(ctx context.Context) ([]Record, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+recordColumns+` FROM item_metadata ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanPgRecord(rows)
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
func (c *PostgresCache) Begin(ctx context.Context) (Batch, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &pgBatch{tx: tx}, nil
}

// Prune removes records for items missing from keep.
func (c *PostgresCache) Prune(ctx context.Context, keep []int64) (int64, error) {
	if keep == nil {
		keep = []int64{}
	}
	tag, err := c.pool.Exec(ctx, `DELETE FROM item_metadata WHERE NOT (item_id = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	removed := tag.RowsAffected()
	c.logger.Debug("pruned orphan records", logging.Int64("removed", removed))
	return removed, nil
}

type pgBatch struct {
	tx pgx.Tx
}

func (b *pgBatch) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var uploaded *time.Time
	if rec.UploadedAt != nil {
		utc := rec.UploadedAt.UTC()
		uploaded = &utc
	}
	_, err := b.tx.Exec(ctx,
		`INSERT INTO item_metadata (item_id, message_id, uploaded_at, season, status, updated_at)
		   VALUES ($1, $2, $3, $4, $5, now())
		   ON CONFLICT (item_id) DO UPDATE SET
		       message_id = EXCLUDED.message_id,
		       uploaded_at = EXCLUDED.uploaded_at,
		       season = EXCLUDED.season,
		       status = EXCLUDED.status,
		       updated_at = EXCLUDED.updated_at`,
		rec.ItemID,
		rec.MessageID,
		uploaded,
		rec.Season,
		string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.ItemID, err)
	}
	return nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	if err := b.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}

func scanPgRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		messageID *int64
		uploaded  *time.Time
		season    *int32
		statusStr string
	)
	if err := row.Scan(&rec.ItemID, &messageID, &uploaded, &season, &statusStr); err != nil {
		return Record{}, err
	}
	status, err := ParseStatus(statusStr)
	if err != nil {
		return Record{}, err
	}
	rec.Status = status
	rec.MessageID = messageID
	if uploaded != nil {
		utc := uploaded.UTC()
		rec.UploadedAt = &utc
	}
	if season != nil {
		s := int(*season)
		rec.Season = &s
	}
	return rec, nil
}
