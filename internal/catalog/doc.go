// Package catalog reads the item catalog that reconciliation dates.
//
// The catalog is owned by another application; this package only ever opens
// it read-only and exposes a snapshot of items (id, display name and an
// optional media reference) with blocklisted names removed.
package catalog
