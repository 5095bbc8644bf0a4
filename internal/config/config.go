package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cardsync/internal/season"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state locations.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	LockFile string `toml:"lock_file"`
}

// Catalog describes where catalog items are read from.
type Catalog struct {
	Path        string   `toml:"path"`
	Table       string   `toml:"table"`
	IDColumn    string   `toml:"id_column"`
	NameColumn  string   `toml:"name_column"`
	MediaColumn string   `toml:"media_column"`
	MediaDir    string   `toml:"media_dir"`
	HiddenNames []string `toml:"hidden_names"`
}

// Timeline selects and tunes the message source.
type Timeline struct {
	// Source is one of "preview", "feed" or "export".
	Source            string  `toml:"source"`
	Channel           string  `toml:"channel"`
	PreviewBaseURL    string  `toml:"preview_base_url"`
	FeedURL           string  `toml:"feed_url"`
	ExportPath        string  `toml:"export_path"`
	FetchLimit        int     `toml:"fetch_limit"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UserAgent         string  `toml:"user_agent"`
}

// Matching holds the cascade thresholds.
type Matching struct {
	OverlapThreshold      float64 `toml:"overlap_threshold"`
	ContainmentMinOverlap float64 `toml:"containment_min_overlap"`
	FuzzyThreshold        float64 `toml:"fuzzy_threshold"`
	MinOverlapWords       int     `toml:"min_overlap_words"`
	MaxNameLength         int     `toml:"max_name_length"`
	// MediaEnabled appends the media-identity strategy to the cascade.
	MediaEnabled bool `toml:"media_enabled"`
}

// Season anchors season numbering.
type Season struct {
	// Origin is the first month of season 1, formatted as YYYY-MM.
	Origin   string `toml:"origin"`
	Timezone string `toml:"timezone"`
}

// Reconcile controls a reconciliation pass.
type Reconcile struct {
	BatchSize     int  `toml:"batch_size"`
	Workers       int  `toml:"workers"`
	Fallback      bool `toml:"fallback"`
	PruneOrphans  bool `toml:"prune_orphans"`
	ProgressEvery int  `toml:"progress_every"`
}

// Cache selects the metadata cache backend.
type Cache struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cardsync.
//
// Configuration sections by subsystem:
//   - Paths: data, log and lock locations
//   - Catalog: SQLite catalog location, schema mapping and hidden names
//   - Timeline: message source selection, pacing and retry
//   - Matching: cascade thresholds
//   - Season: origin month and timezone
//   - Reconcile: batching, workers, fallback and pruning
//   - Cache: metadata cache backend
//   - Metrics: Prometheus textfile output
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Catalog   Catalog   `toml:"catalog"`
	Timeline  Timeline  `toml:"timeline"`
	Matching  Matching  `toml:"matching"`
	Season    Season    `toml:"season"`
	Reconcile Reconcile `toml:"reconcile"`
	Cache     Cache     `toml:"cache"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cardsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.LockFile)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FetchTimeout returns the per-attempt timeline fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Timeline.TimeoutSeconds) * time.Second
}

// SeasonLocation resolves the configured season timezone.
func (c *Config) SeasonLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Season.Timezone)
	if err != nil {
		return nil, fmt.Errorf("season.timezone: %w", err)
	}
	return loc, nil
}

// SeasonDeriver builds the season deriver for the configured origin and zone.
func (c *Config) SeasonDeriver() (season.Deriver, error) {
	year, month, err := season.ParseOrigin(c.Season.Origin)
	if err != nil {
		return season.Deriver{}, fmt.Errorf("season.origin: %w", err)
	}
	loc, err := c.SeasonLocation()
	if err != nil {
		return season.Deriver{}, err
	}
	return season.New(year, month, loc), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
