package testsupport

import (
	"path/filepath"
	"testing"

	"cardsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockFile = filepath.Join(base, "data", "cardsync.lock")
	cfgVal.Catalog.Path = filepath.Join(base, "catalog.db")
	cfgVal.Cache.Path = filepath.Join(base, "data", "cache.db")
	cfgVal.Timeline.Channel = "cards"
	cfgVal.Timeline.MaxRetries = 0
	cfgVal.Timeline.RequestsPerSecond = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithChannel overrides the timeline channel on the test config.
func WithChannel(channel string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timeline.Channel = channel
	}
}

// WithPreviewURL points the preview source at a test server.
func WithPreviewURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timeline.Source = "preview"
		b.cfg.Timeline.PreviewBaseURL = baseURL
	}
}

// WithExport switches the timeline to a JSON export at path.
func WithExport(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timeline.Source = "export"
		b.cfg.Timeline.ExportPath = path
	}
}

// WithFallback toggles provisional fallback records.
func WithFallback(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.Fallback = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
