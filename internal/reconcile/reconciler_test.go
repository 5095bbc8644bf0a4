package reconcile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"cardsync/internal/catalog"
	"cardsync/internal/config"
	"cardsync/internal/matchcache"
	"cardsync/internal/reconcile"
	"cardsync/internal/testsupport"
	"cardsync/internal/timeline"
)

var recordComparer = cmp.Comparer(func(a, b matchcache.Record) bool { return a.Equal(b) })

var (
	march = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	april = time.Date(2025, 4, 2, 18, 30, 0, 0, time.UTC)
)

type staticCatalog struct {
	items []catalog.Item
	err   error
}

func (c *staticCatalog) List(context.Context) ([]catalog.Item, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]catalog.Item(nil), c.items...), nil
}

type staticTimeline struct {
	messages []timeline.Message
	err      error
	calls    int
}

func (s *staticTimeline) Name() string { return "static" }

func (s *staticTimeline) Fetch(context.Context, int) ([]timeline.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]timeline.Message(nil), s.messages...), nil
}

// flakyCache injects failures into an otherwise real cache.
type flakyCache struct {
	matchcache.Cache
	begins       int
	failCommitOn int
	onBegin      func(n int)
	getErr       map[int64]error
}

func (c *flakyCache) Get(ctx context.Context, itemID int64) (*matchcache.Record, error) {
	if err := c.getErr[itemID]; err != nil {
		return nil, err
	}
	return c.Cache.Get(ctx, itemID)
}

func (c *flakyCache) Begin(ctx context.Context) (matchcache.Batch, error) {
	c.begins++
	if c.onBegin != nil {
		c.onBegin(c.begins)
	}
	batch, err := c.Cache.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if c.begins == c.failCommitOn {
		return failingCommit{batch}, nil
	}
	return batch, nil
}

type failingCommit struct{ matchcache.Batch }

func (b failingCommit) Commit(ctx context.Context) error {
	_ = b.Batch.Rollback(ctx)
	return errors.New("disk full")
}

func defaultItems() []catalog.Item {
	return []catalog.Item{
		{ID: 1, Name: "Red Dragon"},
		{ID: 2, Name: "Green Meadow"},
		{ID: 3, Name: "Blue Whale"},
	}
}

func defaultMessages() []timeline.Message {
	return []timeline.Message{
		{ID: 101, Timestamp: april, Text: "Blue Whale"},
		{ID: 100, Timestamp: march, Text: "Red Dragon\n1492-1497"},
	}
}

func newReconciler(t *testing.T, cfg *config.Config, cat catalog.Source, src timeline.Source, cache matchcache.Cache) *reconcile.Reconciler {
	t.Helper()
	r, err := reconcile.New(cfg, reconcile.Dependencies{Catalog: cat, Timeline: src, Cache: cache}, nil)
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}
	return r
}

func listRecords(t *testing.T, cache matchcache.Cache) []matchcache.Record {
	t.Helper()
	records, err := cache.List(context.Background())
	if err != nil {
		t.Fatalf("cache.List: %v", err)
	}
	return records
}

func TestRunMatchesFallsBackAndIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)
	cat := &staticCatalog{items: defaultItems()}
	src := &staticTimeline{messages: defaultMessages()}
	ctx := context.Background()

	report, err := newReconciler(t, cfg, cat, src, cache).Run(ctx, reconcile.Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.Status != reconcile.StatusSucceeded || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Matched != 2 || report.Provisional != 1 || report.Written != 3 || report.Batches != 1 {
		t.Fatalf("unexpected counters %+v", report)
	}
	if report.ByStrategy["exact"] != 2 {
		t.Fatalf("expected two exact matches, got %v", report.ByStrategy)
	}

	want := []matchcache.Record{
		matchcache.Matched(1, 100, march, 3),
		matchcache.Provisional(2, march, 3),
		matchcache.Matched(3, 101, april, 4),
	}
	first := listRecords(t, cache)
	if diff := cmp.Diff(want, first, recordComparer); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	again := newReconciler(t, cfg, cat, src, cache)
	report, err = again.Run(ctx, reconcile.Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Skipped != 2 || report.Written != 0 || report.Unchanged != 1 || report.Batches != 0 {
		t.Fatalf("second run should only re-check the provisional item: %+v", report)
	}
	if got := again.Engine().Invocations(); got != 1 {
		t.Fatalf("engine invocations = %d, want 1", got)
	}
	if diff := cmp.Diff(first, listRecords(t, cache), recordComparer); diff != "" {
		t.Fatalf("rerun changed records (-first +now):\n%s", diff)
	}
}

func TestRunSkipsMatchedItemsWithoutInvokingEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)
	testsupport.MustUpsert(t, cache,
		matchcache.Matched(1, 100, march, 3),
		matchcache.Matched(3, 101, april, 4),
	)
	cat := &staticCatalog{items: []catalog.Item{{ID: 1, Name: "Red Dragon"}, {ID: 3, Name: "Blue Whale"}}}

	r := newReconciler(t, cfg, cat, &staticTimeline{messages: defaultMessages()}, cache)
	report, err := r.Run(context.Background(), reconcile.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 2 || report.Written != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := r.Engine().Invocations(); got != 0 {
		t.Fatalf("engine invocations = %d, want 0", got)
	}

	report, err = r.Run(context.Background(), reconcile.Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if report.Skipped != 0 || report.Matched != 2 || report.Unchanged != 2 {
		t.Fatalf("forced run should re-match unchanged records: %+v", report)
	}
	if got := r.Engine().Invocations(); got != 2 {
		t.Fatalf("engine invocations after force = %d, want 2", got)
	}
}

func TestRunFallbackSources(t *testing.T) {
	tests := []struct {
		name     string
		items    []catalog.Item
		seed     []matchcache.Record
		fallback bool
		want     []matchcache.Record
	}{
		{
			name:     "nearest lower id",
			items:    []catalog.Item{{ID: 1, Name: "Red Dragon"}, {ID: 4, Name: "Green Meadow"}, {ID: 9, Name: "Blue Whale"}},
			fallback: true,
			want: []matchcache.Record{
				matchcache.Matched(1, 100, march, 3),
				matchcache.Provisional(4, march, 3),
				matchcache.Matched(9, 101, april, 4),
			},
		},
		{
			name:     "nearest higher id",
			items:    []catalog.Item{{ID: 2, Name: "Green Meadow"}, {ID: 5, Name: "Blue Whale"}, {ID: 7, Name: "Red Dragon"}},
			fallback: true,
			want: []matchcache.Record{
				matchcache.Provisional(2, april, 4),
				matchcache.Matched(5, 101, april, 4),
				matchcache.Matched(7, 100, march, 3),
			},
		},
		{
			name:     "stored match counts as anchor",
			items:    []catalog.Item{{ID: 3, Name: "Blue Whale"}, {ID: 6, Name: "Green Meadow"}},
			seed:     []matchcache.Record{matchcache.Matched(3, 55, april.AddDate(0, 1, 0), 5)},
			fallback: true,
			want: []matchcache.Record{
				matchcache.Matched(3, 55, april.AddDate(0, 1, 0), 5),
				matchcache.Provisional(6, april.AddDate(0, 1, 0), 5),
			},
		},
		{
			name:     "season origin",
			items:    []catalog.Item{{ID: 2, Name: "Green Meadow"}},
			fallback: true,
			want:     []matchcache.Record{matchcache.Provisional(2, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 1)},
		},
		{
			name:     "fallback disabled",
			items:    []catalog.Item{{ID: 1, Name: "Red Dragon"}, {ID: 2, Name: "Green Meadow"}},
			fallback: false,
			want: []matchcache.Record{
				matchcache.Matched(1, 100, march, 3),
				matchcache.Unmatched(2),
			},
		},
		{
			name:     "existing unmatched stays unmatched",
			items:    []catalog.Item{{ID: 1, Name: "Red Dragon"}, {ID: 2, Name: "Green Meadow"}},
			seed:     []matchcache.Record{matchcache.Unmatched(2)},
			fallback: true,
			want: []matchcache.Record{
				matchcache.Matched(1, 100, march, 3),
				matchcache.Unmatched(2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithFallback(tt.fallback))
			cache := testsupport.MustOpenCache(t, cfg)
			if len(tt.seed) > 0 {
				testsupport.MustUpsert(t, cache, tt.seed...)
			}
			cat := &staticCatalog{items: tt.items}
			r := newReconciler(t, cfg, cat, &staticTimeline{messages: defaultMessages()}, cache)

			if _, err := r.Run(context.Background(), reconcile.Options{}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tt.want, listRecords(t, cache), recordComparer); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunSourceUnavailableWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		cat  *staticCatalog
		src  *staticTimeline
	}{
		{
			name: "timeline",
			cat:  &staticCatalog{items: defaultItems()},
			src:  &staticTimeline{err: errors.New("connection refused")},
		},
		{
			name: "catalog",
			cat:  &staticCatalog{err: errors.New("no such table: files")},
			src:  &staticTimeline{messages: defaultMessages()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cache := testsupport.MustOpenCache(t, cfg)

			report, err := newReconciler(t, cfg, tt.cat, tt.src, cache).Run(context.Background(), reconcile.Options{})
			if !errors.Is(err, reconcile.ErrSourceUnavailable) {
				t.Fatalf("expected ErrSourceUnavailable, got %v", err)
			}
			if report.Status != reconcile.StatusSourceUnavailable {
				t.Fatalf("status = %q", report.Status)
			}
			if records := listRecords(t, cache); len(records) != 0 {
				t.Fatalf("expected no writes, got %+v", records)
			}
		})
	}
}

func batchItems() ([]catalog.Item, []timeline.Message) {
	names := []string{"Amber", "Birch", "Cedar", "Dune", "Ember"}
	items := make([]catalog.Item, 0, len(names))
	messages := make([]timeline.Message, 0, len(names))
	for i, name := range names {
		id := int64(i + 1)
		items = append(items, catalog.Item{ID: id, Name: name})
		messages = append(messages, timeline.Message{ID: 200 + id, Timestamp: march.Add(time.Duration(i) * time.Hour), Text: name})
	}
	return items, messages
}

func TestRunPartialOnBatchFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Reconcile.BatchSize = 2
	base := testsupport.MustOpenCache(t, cfg)
	cache := &flakyCache{Cache: base, failCommitOn: 2}
	items, messages := batchItems()

	report, err := newReconciler(t, cfg, &staticCatalog{items: items}, &staticTimeline{messages: messages}, cache).
		Run(context.Background(), reconcile.Options{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected batch failure, got %v", err)
	}
	if report.Status != reconcile.StatusPartial {
		t.Fatalf("status = %q, want partial", report.Status)
	}
	if report.Batches != 1 || report.Written != 2 {
		t.Fatalf("expected first batch committed only: %+v", report)
	}
	records := listRecords(t, base)
	if len(records) != 2 || records[0].ItemID != 1 || records[1].ItemID != 2 {
		t.Fatalf("expected items 1 and 2 persisted, got %+v", records)
	}
}

func TestRunCanceledBetweenBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Reconcile.BatchSize = 2
	base := testsupport.MustOpenCache(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := &flakyCache{Cache: base, onBegin: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	items, messages := batchItems()

	report, err := newReconciler(t, cfg, &staticCatalog{items: items}, &staticTimeline{messages: messages}, cache).
		Run(ctx, reconcile.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Status != reconcile.StatusCanceled || report.Written != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if records := listRecords(t, base); len(records) != 2 {
		t.Fatalf("expected only the first batch persisted, got %+v", records)
	}
}

func TestRunCountsItemFailuresAndKeepsPriorState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.MustOpenCache(t, cfg)
	testsupport.MustUpsert(t, base, matchcache.Unmatched(3))
	cache := &flakyCache{Cache: base, getErr: map[int64]error{3: errors.New("database is locked")}}

	report, err := newReconciler(t, cfg, &staticCatalog{items: defaultItems()}, &staticTimeline{messages: defaultMessages()}, cache).
		Run(context.Background(), reconcile.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Matched != 1 || report.Provisional != 1 {
		t.Fatalf("unexpected counters %+v", report)
	}
	rec, err := base.Get(context.Background(), 3)
	if err != nil || rec == nil || rec.Status != matchcache.StatusUnmatched {
		t.Fatalf("failed item should keep its record, got %+v, %v", rec, err)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Textfile = filepath.Join(testsupport.BaseDir(cfg), "metrics", "cardsync.prom")
	cache := testsupport.MustOpenCache(t, cfg)

	report, err := newReconciler(t, cfg, &staticCatalog{items: defaultItems()}, &staticTimeline{messages: defaultMessages()}, cache).
		Run(context.Background(), reconcile.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.DryRun || report.Pending != 3 || report.Written != 0 {
		t.Fatalf("unexpected dry-run report %+v", report)
	}
	if records := listRecords(t, cache); len(records) != 0 {
		t.Fatalf("dry run wrote %+v", records)
	}
	if _, err := os.Stat(cfg.Metrics.Textfile); !os.IsNotExist(err) {
		t.Fatalf("dry run should not export metrics, stat err = %v", err)
	}
}

func TestRunLimitAndWorkersKeepOrder(t *testing.T) {
	items, messages := batchItems()

	run := func(opts reconcile.Options) []matchcache.Record {
		cfg := testsupport.NewConfig(t)
		cache := testsupport.MustOpenCache(t, cfg)
		r := newReconciler(t, cfg, &staticCatalog{items: items}, &staticTimeline{messages: messages}, cache)
		if _, err := r.Run(context.Background(), opts); err != nil {
			t.Fatalf("Run(%+v): %v", opts, err)
		}
		return listRecords(t, cache)
	}

	sequential := run(reconcile.Options{Workers: 1})
	parallel := run(reconcile.Options{Workers: 4})
	if diff := cmp.Diff(sequential, parallel, recordComparer); diff != "" {
		t.Fatalf("parallel run differs (-sequential +parallel):\n%s", diff)
	}
	if limited := run(reconcile.Options{Limit: 2}); len(limited) != 2 {
		t.Fatalf("expected 2 records with limit, got %+v", limited)
	}
}

func TestRunPrunesOrphans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Reconcile.PruneOrphans = true
	cache := testsupport.MustOpenCache(t, cfg)
	testsupport.MustUpsert(t, cache, matchcache.Unmatched(99))

	report, err := newReconciler(t, cfg, &staticCatalog{items: defaultItems()}, &staticTimeline{messages: defaultMessages()}, cache).
		Run(context.Background(), reconcile.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Pruned != 1 {
		t.Fatalf("pruned = %d, want 1", report.Pruned)
	}
	if rec, _ := cache.Get(context.Background(), 99); rec != nil {
		t.Fatalf("orphan still present: %+v", rec)
	}

	// An empty catalog snapshot never prunes.
	report, err = newReconciler(t, cfg, &staticCatalog{}, &staticTimeline{messages: defaultMessages()}, cache).
		Run(context.Background(), reconcile.Options{})
	if err != nil {
		t.Fatalf("Run with empty catalog: %v", err)
	}
	if report.Pruned != 0 || len(listRecords(t, cache)) != 3 {
		t.Fatalf("empty catalog should keep records: %+v", report)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Textfile = filepath.Join(testsupport.BaseDir(cfg), "metrics", "cardsync.prom")
	cache := testsupport.MustOpenCache(t, cfg)
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.LockFile), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	held := flock.New(cfg.Paths.LockFile)
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("hold lock: %v %v", ok, err)
	}
	defer held.Unlock()

	src := &staticTimeline{messages: defaultMessages()}
	r := newReconciler(t, cfg, &staticCatalog{items: defaultItems()}, src, cache)
	report, err := r.Run(context.Background(), reconcile.Options{})
	if !errors.Is(err, reconcile.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if report.Status != reconcile.StatusLocked {
		t.Fatalf("Status = %q, want %q", report.Status, reconcile.StatusLocked)
	}
	if report.RunID == "" || report.Finished.IsZero() {
		t.Fatalf("locked report should still be finished: %+v", report)
	}
	if src.calls != 0 {
		t.Fatalf("locked run should not fetch, got %d calls", src.calls)
	}
	if _, err := os.Stat(cfg.Metrics.Textfile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("locked run should not write metrics, stat err = %v", err)
	}
	if _, err := r.Run(context.Background(), reconcile.Options{DryRun: true}); err != nil {
		t.Fatalf("dry run should not need the lock: %v", err)
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Textfile = filepath.Join(testsupport.BaseDir(cfg), "metrics", "cardsync.prom")
	cache := testsupport.MustOpenCache(t, cfg)

	if _, err := newReconciler(t, cfg, &staticCatalog{items: defaultItems()}, &staticTimeline{messages: defaultMessages()}, cache).
		Run(context.Background(), reconcile.Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	content, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`cardsync_reconcile_items{outcome="matched"} 2`,
		`cardsync_reconcile_items{outcome="provisional"} 1`,
		`cardsync_reconcile_strategy_matches{strategy="exact"} 2`,
		`cardsync_reconcile_status{status="succeeded"} 1`,
		"cardsync_reconcile_last_success_timestamp_seconds",
	} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("metrics missing %q:\n%s", want, content)
		}
	}
}
