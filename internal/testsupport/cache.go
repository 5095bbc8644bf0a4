package testsupport

import (
	"context"
	"testing"

	"cardsync/internal/config"
	"cardsync/internal/matchcache"
)

// MustOpenCache opens the SQLite cache named by cfg and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *matchcache.SQLiteCache {
	t.Helper()

	cache, err := matchcache.OpenSQLite(context.Background(), cfg.Cache.Path, nil)
	if err != nil {
		t.Fatalf("matchcache.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		cache.Close()
	})
	return cache
}

// MustUpsert writes records in one batch.
func MustUpsert(t testing.TB, cache matchcache.Cache, records ...matchcache.Record) {
	t.Helper()

	ctx := context.Background()
	batch, err := cache.Begin(ctx)
	if err != nil {
		t.Fatalf("cache.Begin: %v", err)
	}
	for _, rec := range records {
		if err := batch.Upsert(ctx, rec); err != nil {
			_ = batch.Rollback(ctx)
			t.Fatalf("batch.Upsert(%d): %v", rec.ItemID, err)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("batch.Commit: %v", err)
	}
}
