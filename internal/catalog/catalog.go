package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"cardsync/internal/logging"
	"cardsync/internal/textutil"
)

// Item is one catalog entry.
type Item struct {
	ID       int64
	Name     string
	MediaRef string
}

// Source lists the catalog snapshot for a run.
type Source interface {
	List(ctx context.Context) ([]Item, error)
}

// Schema names the catalog table and columns to read.
type Schema struct {
	Table       string
	IDColumn    string
	NameColumn  string
	MediaColumn string
}

// DefaultSchema matches the catalog application's files table.
func DefaultSchema() Schema {
	return Schema{Table: "files", IDColumn: "id", NameColumn: "name"}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s Schema) validate() error {
	for label, value := range map[string]string{
		"table":       s.Table,
		"id column":   s.IDColumn,
		"name column": s.NameColumn,
	} {
		if !identifierPattern.MatchString(value) {
			return fmt.Errorf("catalog %s %q is not a valid identifier", label, value)
		}
	}
	if s.MediaColumn != "" && !identifierPattern.MatchString(s.MediaColumn) {
		return fmt.Errorf("catalog media column %q is not a valid identifier", s.MediaColumn)
	}
	return nil
}

func (s Schema) query() string {
	media := "NULL"
	if s.MediaColumn != "" {
		media = s.MediaColumn
	}
	return fmt.Sprintf("SELECT %s, %s, %s FROM %s ORDER BY %s", s.IDColumn, s.NameColumn, media, s.Table, s.IDColumn)
}

// SQLiteSource reads items from a SQLite catalog opened read-only.
type SQLiteSource struct {
	db     *sql.DB
	schema Schema
	hidden map[string]struct{}
	logger *slog.Logger
}

var _ Source = (*SQLiteSource)(nil)

// OpenSQLite opens the catalog at path without write access. hidden lists
// display names to exclude; they are compared after normalization.
func OpenSQLite(path string, schema Schema, hidden []string, logger *slog.Logger) (*SQLiteSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path required")
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	set := make(map[string]struct{}, len(hidden))
	for _, name := range hidden {
		if key := textutil.Normalize(name); key != "" {
			set[key] = struct{}{}
		}
	}
	return &SQLiteSource{
		db:     db,
		schema: schema,
		hidden: set,
		logger: logging.NewComponentLogger(logger, "catalog"),
	}, nil
}

// Close closes the catalog connection.
func (s *SQLiteSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns all visible items ordered by id.
func (s *SQLiteSource) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, s.schema.query())
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var (
		items  []Item
		hidden int
	)
	for rows.Next() {
		var (
			id    int64
			name  sql.NullString
			media sql.NullString
		)
		if err := rows.Scan(&id, &name, &media); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		if _, skip := s.hidden[textutil.Normalize(name.String)]; skip {
			hidden++
			continue
		}
		items = append(items, Item{ID: id, Name: name.String, MediaRef: strings.TrimSpace(media.String)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	s.logger.Debug("catalog snapshot loaded",
		logging.Int("items", len(items)),
		logging.Int("hidden", hidden),
	)
	return items, nil
}
