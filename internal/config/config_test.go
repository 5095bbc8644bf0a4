package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cardsync/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("CARDSYNC_CHANNEL", "@cards")
	t.Setenv("CARDSYNC_CATALOG_PATH", "~/catalog.db")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "cardsync")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LockFile != filepath.Join(wantData, "cardsync.lock") {
		t.Fatalf("unexpected lock file: %q", cfg.Paths.LockFile)
	}
	if cfg.Cache.Path != filepath.Join(wantData, "cache.db") {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
	if cfg.Catalog.Path != filepath.Join(tempHome, "catalog.db") {
		t.Fatalf("unexpected catalog path: %q", cfg.Catalog.Path)
	}
	if cfg.Timeline.Channel != "cards" {
		t.Fatalf("expected channel from env without @, got %q", cfg.Timeline.Channel)
	}
	if cfg.Timeline.FetchLimit != 2000 || cfg.Reconcile.BatchSize != 20 {
		t.Fatalf("unexpected defaults: fetch_limit=%d batch_size=%d", cfg.Timeline.FetchLimit, cfg.Reconcile.BatchSize)
	}
	if !cfg.Reconcile.Fallback {
		t.Fatal("expected fallback enabled by default")
	}
	if len(cfg.Catalog.HiddenNames) != 3 {
		t.Fatalf("expected default hidden names, got %v", cfg.Catalog.HiddenNames)
	}
	if cfg.FetchTimeout() != 2*time.Minute {
		t.Fatalf("unexpected fetch timeout %s", cfg.FetchTimeout())
	}

	deriver, err := cfg.SeasonDeriver()
	if err != nil {
		t.Fatalf("SeasonDeriver returned error: %v", err)
	}
	if got := deriver.For(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)); got != 3 {
		t.Fatalf("season for 2025-03-12 = %d, want 3", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CARDSYNC_CHANNEL", "")

	custom := config.Default()
	custom.Timeline.Source = "feed"
	custom.Timeline.FeedURL = " https://example.test/feed.xml "
	custom.Catalog.Path = "~/data/catalog.db"
	custom.Catalog.HiddenNames = []string{"test", " test ", ""}
	custom.Cache.Path = "~/state/cache.db"
	custom.Matching.FuzzyThreshold = 80
	custom.Season.Origin = "2024-06"
	custom.Season.Timezone = "UTC"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cardsync.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected to load %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Timeline.FeedURL != "https://example.test/feed.xml" {
		t.Fatalf("unexpected feed url %q", cfg.Timeline.FeedURL)
	}
	if cfg.Catalog.Path != filepath.Join(tempHome, "data", "catalog.db") {
		t.Fatalf("unexpected catalog path %q", cfg.Catalog.Path)
	}
	if len(cfg.Catalog.HiddenNames) != 1 {
		t.Fatalf("expected hidden names deduplicated, got %v", cfg.Catalog.HiddenNames)
	}
	if cfg.Cache.Path != filepath.Join(tempHome, "state", "cache.db") {
		t.Fatalf("unexpected cache path %q", cfg.Cache.Path)
	}
	if cfg.Matching.FuzzyThreshold != 80 {
		t.Fatalf("unexpected fuzzy threshold %v", cfg.Matching.FuzzyThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}

	deriver, err := cfg.SeasonDeriver()
	if err != nil {
		t.Fatalf("SeasonDeriver returned error: %v", err)
	}
	if got := deriver.For(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Fatalf("season at origin = %d, want 1", got)
	}
}

func TestCacheDSNFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CARDSYNC_CACHE_DSN", "postgres://cardsync@localhost/cardsync")

	path := filepath.Join(t.TempDir(), "cardsync.toml")
	body := "[timeline]\nchannel = \"cards\"\n\n[cache]\ndriver = \"PostgreSQL\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Cache.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Cache.Driver)
	}
	if cfg.Cache.DSN != "postgres://cardsync@localhost/cardsync" {
		t.Fatalf("expected DSN from env, got %q", cfg.Cache.DSN)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[timeline]") {
		t.Fatalf("sample config missing timeline section:\n%s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Reconcile.BatchSize != 20 || cfg.Season.Origin != "2025-01" {
		t.Fatalf("sample defaults drifted: %+v %+v", cfg.Reconcile, cfg.Season)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "preview without channel",
			mutate:  func(c *config.Config) { c.Timeline.Channel = "" },
			wantErr: "timeline.channel",
		},
		{
			name:    "feed without url",
			mutate:  func(c *config.Config) { c.Timeline.Source = "feed" },
			wantErr: "timeline.feed_url",
		},
		{
			name:    "unknown source",
			mutate:  func(c *config.Config) { c.Timeline.Source = "carrier-pigeon" },
			wantErr: "timeline.source",
		},
		{
			name:    "overlap threshold above one",
			mutate:  func(c *config.Config) { c.Matching.OverlapThreshold = 1.5 },
			wantErr: "matching.overlap_threshold",
		},
		{
			name:    "fuzzy threshold out of range",
			mutate:  func(c *config.Config) { c.Matching.FuzzyThreshold = 120 },
			wantErr: "matching.fuzzy_threshold",
		},
		{
			name:    "bad season origin",
			mutate:  func(c *config.Config) { c.Season.Origin = "January" },
			wantErr: "season.origin",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *config.Config) { c.Season.Timezone = "Mars/Olympus" },
			wantErr: "season.timezone",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Cache.Driver = "postgres" },
			wantErr: "cache.dsn",
		},
		{
			name:    "unknown cache driver",
			mutate:  func(c *config.Config) { c.Cache.Driver = "redis" },
			wantErr: "cache.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Timeline.Channel = "cards"
			cfg.Cache.Path = "/tmp/cache.db"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateCatalog(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	if err := cfg.ValidateCatalog(); err == nil || !strings.Contains(err.Error(), "catalog.path") {
		t.Fatalf("expected catalog.path error, got %v", err)
	}
	cfg.Catalog.Path = "/srv/catalog.db"
	if err := cfg.ValidateCatalog(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
