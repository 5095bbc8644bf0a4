package reconcile

import (
	"errors"
	"time"
)

// Status summarizes how a run ended.
type Status string

const (
	StatusSucceeded         Status = "succeeded"
	StatusPartial           Status = "partial"
	StatusCanceled          Status = "canceled"
	StatusSourceUnavailable Status = "source_unavailable"
	// StatusLocked means another run held the lock; nothing was read or written.
	StatusLocked Status = "locked"
)

var (
	// ErrSourceUnavailable means the catalog or timeline could not be read;
	// nothing was written.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRunInProgress means another run holds the lock on the cache.
	ErrRunInProgress = errors.New("another reconciliation run is in progress")
)

// Report describes a finished run. Matched, Unmatched and Provisional count
// items evaluated in this run; Skipped items kept an existing match.
type Report struct {
	RunID       string
	Status      Status
	DryRun      bool
	Items       int
	Messages    int
	Matched     int
	Unmatched   int
	Provisional int
	Skipped     int
	Failed      int
	// Pending counts records that differ from the stored state.
	Pending    int
	Written    int
	Unchanged  int
	Batches    int
	Pruned     int64
	ByStrategy map[string]int
	Started    time.Time
	Finished   time.Time
}

// Succeeded reports whether the run completed every phase.
func (r Report) Succeeded() bool { return r.Status == StatusSucceeded }

// Duration returns the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() || r.Started.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
