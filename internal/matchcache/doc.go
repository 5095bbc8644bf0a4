// Package matchcache persists reconciliation results keyed by catalog item id.
//
// A Record is the single source of truth for what a pass decided about an
// item: matched to a message, searched without a match, or given a
// provisional timestamp borrowed from its neighbours. The absence of a record
// means the item was never attempted.
//
// Two backends implement Cache. SQLite is the default and lives next to the
// log directory; PostgreSQL is used when several hosts share one cache.
// Writes go through a Batch so the orchestrator controls transaction
// boundaries; every Upsert is idempotent on item id.
package matchcache
