package config

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeTimeline(); err != nil {
		return err
	}
	c.normalizeMatching()
	c.normalizeSeason()
	c.normalizeReconcile()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockFile) == "" {
		c.Paths.LockFile = filepath.Join(c.Paths.DataDir, "cardsync.lock")
	}
	if c.Paths.LockFile, err = expandPath(c.Paths.LockFile); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	var err error
	if strings.TrimSpace(c.Catalog.Path) == "" {
		if value, ok := os.LookupEnv("CARDSYNC_CATALOG_PATH"); ok {
			c.Catalog.Path = strings.TrimSpace(value)
		}
	}
	if c.Catalog.Path, err = expandPath(strings.TrimSpace(c.Catalog.Path)); err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}
	if c.Catalog.MediaDir, err = expandPath(strings.TrimSpace(c.Catalog.MediaDir)); err != nil {
		return fmt.Errorf("catalog.media_dir: %w", err)
	}
	c.Catalog.Table = cmp.Or(strings.TrimSpace(c.Catalog.Table), defaultCatalogTable)
	c.Catalog.IDColumn = cmp.Or(strings.TrimSpace(c.Catalog.IDColumn), defaultCatalogIDColumn)
	c.Catalog.NameColumn = cmp.Or(strings.TrimSpace(c.Catalog.NameColumn), defaultCatalogNameColumn)
	c.Catalog.MediaColumn = strings.TrimSpace(c.Catalog.MediaColumn)

	names := make([]string, 0, len(c.Catalog.HiddenNames))
	seen := make(map[string]struct{}, len(c.Catalog.HiddenNames))
	for _, name := range c.Catalog.HiddenNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	c.Catalog.HiddenNames = names
	return nil
}

func (c *Config) normalizeTimeline() error {
	c.Timeline.Source = strings.ToLower(strings.TrimSpace(c.Timeline.Source))
	if c.Timeline.Source == "" {
		c.Timeline.Source = defaultTimelineSource
	}
	if strings.TrimSpace(c.Timeline.Channel) == "" {
		if value, ok := os.LookupEnv("CARDSYNC_CHANNEL"); ok {
			c.Timeline.Channel = value
		}
	}
	c.Timeline.Channel = strings.TrimPrefix(strings.TrimSpace(c.Timeline.Channel), "@")
	c.Timeline.PreviewBaseURL = strings.TrimRight(strings.TrimSpace(c.Timeline.PreviewBaseURL), "/")
	if c.Timeline.PreviewBaseURL == "" {
		c.Timeline.PreviewBaseURL = defaultPreviewBaseURL
	}
	c.Timeline.FeedURL = strings.TrimSpace(c.Timeline.FeedURL)
	var err error
	if c.Timeline.ExportPath, err = expandPath(strings.TrimSpace(c.Timeline.ExportPath)); err != nil {
		return fmt.Errorf("timeline.export_path: %w", err)
	}
	if c.Timeline.FetchLimit <= 0 {
		c.Timeline.FetchLimit = defaultFetchLimit
	}
	if c.Timeline.TimeoutSeconds <= 0 {
		c.Timeline.TimeoutSeconds = defaultFetchTimeout
	}
	if c.Timeline.MaxRetries < 0 {
		c.Timeline.MaxRetries = 0
	}
	c.Timeline.UserAgent = strings.TrimSpace(c.Timeline.UserAgent)
	if c.Timeline.UserAgent == "" {
		c.Timeline.UserAgent = defaultUserAgent
	}
	return nil
}

func (c *Config) normalizeMatching() {
	d := Default().Matching
	if c.Matching.OverlapThreshold == 0 {
		c.Matching.OverlapThreshold = d.OverlapThreshold
	}
	if c.Matching.ContainmentMinOverlap == 0 {
		c.Matching.ContainmentMinOverlap = d.ContainmentMinOverlap
	}
	if c.Matching.FuzzyThreshold == 0 {
		c.Matching.FuzzyThreshold = d.FuzzyThreshold
	}
	if c.Matching.MinOverlapWords == 0 {
		c.Matching.MinOverlapWords = d.MinOverlapWords
	}
	if c.Matching.MaxNameLength == 0 {
		c.Matching.MaxNameLength = d.MaxNameLength
	}
}

func (c *Config) normalizeSeason() {
	c.Season.Origin = strings.TrimSpace(c.Season.Origin)
	if c.Season.Origin == "" {
		c.Season.Origin = defaultSeasonOrigin
	}
	c.Season.Timezone = strings.TrimSpace(c.Season.Timezone)
	if c.Season.Timezone == "" {
		c.Season.Timezone = defaultSeasonTimezone
	}
}

func (c *Config) normalizeReconcile() {
	if c.Reconcile.BatchSize <= 0 {
		c.Reconcile.BatchSize = defaultBatchSize
	}
	if c.Reconcile.Workers <= 0 {
		c.Reconcile.Workers = defaultWorkers
	}
	if c.Reconcile.ProgressEvery <= 0 {
		c.Reconcile.ProgressEvery = defaultProgressEvery
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	switch c.Cache.Driver {
	case "":
		c.Cache.Driver = defaultCacheDriver
	case "postgresql":
		c.Cache.Driver = "postgres"
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = filepath.Join(c.Paths.DataDir, "cache.db")
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.DSN = strings.TrimSpace(c.Cache.DSN)
	if c.Cache.DSN == "" {
		if value, ok := os.LookupEnv("CARDSYNC_CACHE_DSN"); ok {
			c.Cache.DSN = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
