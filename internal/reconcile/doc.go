// Package reconcile runs a reconciliation pass: it snapshots the catalog and
// the timeline, matches every item through the matching engine, assigns
// provisional timestamps to items without a match, and writes the resulting
// records to the metadata cache in small transactional batches.
//
// Phases are strictly ordered. Nothing is written until both sources were
// read and every item was matched in memory, so an unavailable source leaves
// the cache untouched. Items already holding a matched record are skipped
// unless Options.Force is set, which makes repeated runs cheap and
// idempotent. A file lock prevents two runs from writing the same cache.
package reconcile
