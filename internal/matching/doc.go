// Package matching decides which timeline message introduced a catalog item.
//
// An Engine evaluates an ordered cascade of strategies (exact, containment,
// word overlap, fuzzy similarity and, when media references are available,
// media identity) against a frozen Snapshot of the message set. The first
// strategy that yields any candidate wins; within it the highest score wins
// and ties go to the most recent message (latest timestamp, then highest id).
// "No match" is an ordinary result, not an error.
//
// Snapshots precompute normalized text, extracted names and word sets once
// per run and are read-only afterwards, so a single Snapshot can be shared by
// concurrent FindMatch calls. Thresholds live in Policy rather than package
// state to keep runs reproducible.
package matching
