package logging

import "strings"

// ProgressSampler suppresses per-item progress logs, emitting once every
// `every` items, on the final item, and whenever the phase changes.
type ProgressSampler struct {
	every     int
	lastPhase string
	lastDone  int
}

// NewProgressSampler constructs a sampler; every <= 0 defaults to 100.
func NewProgressSampler(every int) *ProgressSampler {
	if every <= 0 {
		every = 100
	}
	return &ProgressSampler{every: every}
}

// ShouldLog reports whether progress at done of total items in phase should
// be logged. A total of zero means unknown.
func (s *ProgressSampler) ShouldLog(phase string, done, total int) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != s.lastPhase {
		s.lastPhase = phase
		s.lastDone = 0
		emit = true
	}
	if done <= 0 || done == s.lastDone {
		return emit
	}
	if done%s.every == 0 || (total > 0 && done >= total) {
		s.lastDone = done
		emit = true
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastDone = 0
}
