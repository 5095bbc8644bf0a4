package matching

import (
	"cardsync/internal/textutil"
	"cardsync/internal/timeline"
)

// entry is a message with its comparison forms precomputed.
type entry struct {
	msg        timeline.Message
	normalized string
	words      map[string]struct{}
	name       string
	nameWords  map[string]struct{}
}

func (e entry) hasName() bool { return e.name != "" }

// compareWords returns the word set used for overlap scoring: the extracted
// name when one exists, otherwise the whole caption.
func (e entry) compareWords() map[string]struct{} {
	if e.hasName() {
		return e.nameWords
	}
	return e.words
}

// compareText returns the string used for fuzzy scoring.
func (e entry) compareText() string {
	if e.hasName() {
		return e.name
	}
	return e.normalized
}

// Snapshot is a frozen, preprocessed message set. It is safe for concurrent
// readers.
type Snapshot struct {
	entries []entry
	unnamed int
}

// NewSnapshot preprocesses messages using the policy's name extraction limit.
func NewSnapshot(messages []timeline.Message, policy Policy) *Snapshot {
	policy = policy.normalized()
	snap := &Snapshot{entries: make([]entry, 0, len(messages))}
	for _, msg := range messages {
		e := entry{msg: msg, normalized: textutil.Normalize(msg.Text)}
		e.words = textutil.WordSet(e.normalized)
		if name, ok := textutil.ExtractName(msg.Text, policy.MaxNameLength); ok {
			e.name = name
			e.nameWords = textutil.WordSet(name)
		} else if msg.Text != "" {
			snap.unnamed++
		}
		snap.entries = append(snap.entries, e)
	}
	return snap
}

// Len returns the number of messages in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Unnamed returns how many captioned messages yielded no extractable name.
func (s *Snapshot) Unnamed() int {
	if s == nil {
		return 0
	}
	return s.unnamed
}
