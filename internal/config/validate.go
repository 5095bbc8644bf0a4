package config

import (
	"errors"
	"fmt"
	"strings"

	"cardsync/internal/season"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateSeason(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return nil
}

// ValidateCatalog reports whether a catalog source is configured. Commands
// that never read the catalog skip it.
func (c *Config) ValidateCatalog() error {
	if strings.TrimSpace(c.Catalog.Path) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("catalog.path is required. Set CARDSYNC_CATALOG_PATH or edit %s (create with 'cardsync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateTimeline() error {
	switch c.Timeline.Source {
	case "preview":
		if c.Timeline.Channel == "" {
			return errors.New("timeline.channel must be set when timeline.source is preview (or set CARDSYNC_CHANNEL)")
		}
	case "feed":
		if c.Timeline.FeedURL == "" {
			return errors.New("timeline.feed_url must be set when timeline.source is feed")
		}
	case "export":
		if c.Timeline.ExportPath == "" {
			return errors.New("timeline.export_path must be set when timeline.source is export")
		}
	default:
		return fmt.Errorf("timeline.source: unsupported value %q (want preview, feed or export)", c.Timeline.Source)
	}
	if c.Timeline.RequestsPerSecond < 0 {
		return errors.New("timeline.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.OverlapThreshold <= 0 || m.OverlapThreshold > 1 {
		return errors.New("matching.overlap_threshold must be between 0 and 1")
	}
	if m.ContainmentMinOverlap <= 0 || m.ContainmentMinOverlap > 1 {
		return errors.New("matching.containment_min_overlap must be between 0 and 1")
	}
	if m.FuzzyThreshold <= 0 || m.FuzzyThreshold > 100 {
		return errors.New("matching.fuzzy_threshold must be between 0 and 100")
	}
	if err := ensurePositiveMap(map[string]int{
		"matching.min_overlap_words": m.MinOverlapWords,
		"matching.max_name_length":   m.MaxNameLength,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSeason() error {
	if _, _, err := season.ParseOrigin(c.Season.Origin); err != nil {
		return fmt.Errorf("season.origin: %w", err)
	}
	if _, err := c.SeasonLocation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.Workers > 64 {
		return errors.New("reconcile.workers must be <= 64")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			return errors.New("cache.path must be set when cache.driver is sqlite")
		}
	case "postgres":
		if c.Cache.DSN == "" {
			return errors.New("cache.dsn must be set when cache.driver is postgres (or set CARDSYNC_CACHE_DSN)")
		}
	default:
		return fmt.Errorf("cache.driver: unsupported value %q (want sqlite or postgres)", c.Cache.Driver)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
