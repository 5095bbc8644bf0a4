package config

const (
	defaultConfigPath        = "~/.config/cardsync/config.toml"
	defaultDataDir           = "~/.local/share/cardsync"
	defaultLogDir            = "~/.local/share/cardsync/logs"
	defaultCatalogTable      = "files"
	defaultCatalogIDColumn   = "id"
	defaultCatalogNameColumn = "name"
	defaultTimelineSource    = "preview"
	defaultPreviewBaseURL    = "https://t.me/s"
	defaultFetchLimit        = 2000
	defaultFetchTimeout      = 120
	defaultFetchRetries      = 3
	defaultRequestsPerSecond = 2
	defaultUserAgent         = "cardsync/1.0"
	defaultSeasonOrigin      = "2025-01"
	defaultSeasonTimezone    = "UTC"
	defaultBatchSize         = 20
	defaultWorkers           = 1
	defaultProgressEvery     = 100
	defaultCacheDriver       = "sqlite"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// defaultHiddenNames are catalog entries that never take part in a pass.
var defaultHiddenNames = []string{
	"срать в помогатор апельсины",
	"test",
	"фаланга пальца",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Catalog: Catalog{
			Table:       defaultCatalogTable,
			IDColumn:    defaultCatalogIDColumn,
			NameColumn:  defaultCatalogNameColumn,
			HiddenNames: append([]string(nil), defaultHiddenNames...),
		},
		Timeline: Timeline{
			Source:            defaultTimelineSource,
			PreviewBaseURL:    defaultPreviewBaseURL,
			FetchLimit:        defaultFetchLimit,
			TimeoutSeconds:    defaultFetchTimeout,
			MaxRetries:        defaultFetchRetries,
			RequestsPerSecond: defaultRequestsPerSecond,
			UserAgent:         defaultUserAgent,
		},
		Matching: Matching{
			OverlapThreshold:      0.6,
			ContainmentMinOverlap: 0.6,
			FuzzyThreshold:        70,
			MinOverlapWords:       2,
			MaxNameLength:         100,
		},
		Season: Season{
			Origin:   defaultSeasonOrigin,
			Timezone: defaultSeasonTimezone,
		},
		Reconcile: Reconcile{
			BatchSize:     defaultBatchSize,
			Workers:       defaultWorkers,
			Fallback:      true,
			ProgressEvery: defaultProgressEvery,
		},
		Cache: Cache{
			Driver: defaultCacheDriver,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
