package reconcile

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cardsync/internal/catalog"
	"cardsync/internal/config"
	"cardsync/internal/matching"
	"cardsync/internal/timeline"
)

// OpenCatalog opens the configured catalog read-only.
func OpenCatalog(cfg *config.Config, logger *slog.Logger) (*catalog.SQLiteSource, error) {
	if err := cfg.ValidateCatalog(); err != nil {
		return nil, err
	}
	schema := catalog.Schema{
		Table:       cfg.Catalog.Table,
		IDColumn:    cfg.Catalog.IDColumn,
		NameColumn:  cfg.Catalog.NameColumn,
		MediaColumn: cfg.Catalog.MediaColumn,
	}
	return catalog.OpenSQLite(cfg.Catalog.Path, schema, cfg.Catalog.HiddenNames, logger)
}

// NewTimeline builds the configured timeline source.
func NewTimeline(cfg *config.Config, logger *slog.Logger) (timeline.Source, error) {
	opts := networkOptions(cfg, logger)
	switch strings.ToLower(strings.TrimSpace(cfg.Timeline.Source)) {
	case "", "preview":
		return timeline.NewPreviewSource(cfg.Timeline.Channel, cfg.Timeline.PreviewBaseURL, opts...)
	case "feed":
		return timeline.NewFeedSource(cfg.Timeline.FeedURL, opts...)
	case "export":
		loc, err := cfg.SeasonLocation()
		if err != nil {
			return nil, err
		}
		return timeline.NewExportSource(cfg.Timeline.ExportPath, loc, logger)
	default:
		return nil, fmt.Errorf("unknown timeline source %q", cfg.Timeline.Source)
	}
}

// NewEngine builds the matching engine from the configured thresholds. The
// media strategy is enabled by matching.media_enabled and resolves catalog
// media relative to catalog.media_dir.
func NewEngine(cfg *config.Config, logger *slog.Logger) *matching.Engine {
	policy := matching.Policy{
		OverlapThreshold:      cfg.Matching.OverlapThreshold,
		ContainmentMinOverlap: cfg.Matching.ContainmentMinOverlap,
		FuzzyThreshold:        cfg.Matching.FuzzyThreshold,
		MinOverlapWords:       cfg.Matching.MinOverlapWords,
		MaxNameLength:         cfg.Matching.MaxNameLength,
	}
	opts := []matching.Option{matching.WithLogger(logger)}
	if cfg.Matching.MediaEnabled {
		resolver := timeline.NewHashResolver(cfg.Catalog.MediaDir, networkOptions(cfg, logger)...)
		opts = append(opts, matching.WithMediaResolver(timeline.NewCachingResolver(resolver)))
	}
	return matching.NewEngine(policy, opts...)
}

func networkOptions(cfg *config.Config, logger *slog.Logger) []timeline.Option {
	return []timeline.Option{
		timeline.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		timeline.WithRequestsPerSecond(cfg.Timeline.RequestsPerSecond),
		timeline.WithUserAgent(cfg.Timeline.UserAgent),
		timeline.WithLogger(logger),
	}
}

// RetryPolicy derives the timeline fetch retry policy from cfg.
func RetryPolicy(cfg *config.Config) timeline.RetryPolicy {
	policy := timeline.DefaultRetryPolicy()
	if timeout := cfg.FetchTimeout(); timeout > 0 {
		policy.Timeout = timeout
	}
	policy.MaxRetries = cfg.Timeline.MaxRetries
	return policy
}
