// Package logging assembles structured slog loggers and formatting helpers used
// across cardsync.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes field helpers so components emit the same keys
// (component, run_id, item_id). Reconciliation runs attach their run id to the
// context with WithRunID and derive loggers with WithContext. NewNop provides
// a silent logger for tests and wiring code that cannot fail.
package logging
