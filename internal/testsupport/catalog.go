package testsupport

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"cardsync/internal/catalog"
)

// WriteCatalog creates a SQLite catalog at path with a files(id, name, image)
// table holding items.
func WriteCatalog(t testing.TB, path string, items ...catalog.Item) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open catalog %s: %v", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (id INTEGER PRIMARY KEY, name TEXT, image TEXT)`); err != nil {
		t.Fatalf("create files table: %v", err)
	}
	for _, item := range items {
		var image any
		if item.MediaRef != "" {
			image = item.MediaRef
		}
		if _, err := db.Exec(`INSERT OR REPLACE INTO files (id, name, image) VALUES (?, ?, ?)`, item.ID, item.Name, image); err != nil {
			t.Fatalf("insert item %d: %v", item.ID, err)
		}
	}
}

// RemoveCatalogItem deletes one item from a catalog written by WriteCatalog.
func RemoveCatalogItem(t testing.TB, path string, id int64) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open catalog %s: %v", path, err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		t.Fatalf("delete item %d: %v", id, err)
	}
}
