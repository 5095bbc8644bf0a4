// Package config loads, normalizes, and validates cardsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CARDSYNC_CHANNEL and CARDSYNC_CACHE_DSN. The Config type centralizes every
// knob the CLI needs, from catalog schema mapping to matching thresholds and
// the cache backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
