package matchcache_test

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardsync/internal/matchcache"
)

// Integration tests are enabled when CARDSYNC_TEST_POSTGRES_DSN is set to a
// URL-form connection string.

func TestPostgresCacheRoundTrip(t *testing.T) {
	cache := mustOpenPostgresCache(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)

	want := []matchcache.Record{
		matchcache.Matched(1, 900, at, 3),
		matchcache.Unmatched(2),
		matchcache.Provisional(3, at, 3),
	}
	batch, err := cache.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, rec := range want {
		if err := batch.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert %d: %v", rec.ItemID, err)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := batch.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}

	got, err := cache.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(want, got, recordComparer); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	rec, err := cache.Get(ctx, 3)
	if err != nil || rec == nil || rec.Status != matchcache.StatusProvisional {
		t.Fatalf("get provisional = %+v, %v", rec, err)
	}
	if missing, err := cache.Get(ctx, 99); err != nil || missing != nil {
		t.Fatalf("expected absent record, got %+v, %v", missing, err)
	}

	removed, err := cache.Prune(ctx, []int64{1})
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
}

func TestPostgresBatchRollback(t *testing.T) {
	cache := mustOpenPostgresCache(t)
	ctx := context.Background()

	batch, err := cache.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := batch.Upsert(ctx, matchcache.Unmatched(10)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := batch.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	records, err := cache.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records after rollback, got %+v", records)
	}
}

// ---- helpers ----

func mustOpenPostgresCache(t *testing.T) *matchcache.PostgresCache {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("CARDSYNC_TEST_POSTGRES_DSN"))
	if raw == "" {
		t.Skip("integration test skipped: CARDSYNC_TEST_POSTGRES_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(admin.Close)

	schema := "cardsync_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	dsn, err := withSearchPath(raw, schema)
	if err != nil {
		t.Fatalf("scope dsn: %v", err)
	}
	cache, err := matchcache.OpenPostgres(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("open postgres cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("dsn must be a postgres:// URL: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
