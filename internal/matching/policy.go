package matching

import "cardsync/internal/textutil"

// Policy centralizes matching thresholds.
type Policy struct {
	// OverlapThreshold is the minimum share of item words a message must
	// contain for the word-overlap strategy.
	OverlapThreshold float64
	// ContainmentMinOverlap guards containment hits against short accidental
	// substrings.
	ContainmentMinOverlap float64
	// FuzzyThreshold is the minimum similarity ratio (0-100).
	FuzzyThreshold float64
	// MinOverlapWords is the minimum item name length, in words, for the
	// containment and word-overlap strategies.
	MinOverlapWords int
	// MaxNameLength bounds unstructured captions treated as a bare name.
	MaxNameLength int
}

// DefaultPolicy returns thresholds tuned for short product-style names.
func DefaultPolicy() Policy {
	return Policy{
		OverlapThreshold:      0.6,
		ContainmentMinOverlap: 0.6,
		FuzzyThreshold:        70,
		MinOverlapWords:       2,
		MaxNameLength:         textutil.DefaultMaxNameLength,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()

	if p.OverlapThreshold <= 0 || p.OverlapThreshold > 1 {
		p.OverlapThreshold = d.OverlapThreshold
	}
	if p.ContainmentMinOverlap <= 0 || p.ContainmentMinOverlap > 1 {
		p.ContainmentMinOverlap = d.ContainmentMinOverlap
	}
	if p.FuzzyThreshold <= 0 || p.FuzzyThreshold > 100 {
		p.FuzzyThreshold = d.FuzzyThreshold
	}
	if p.MinOverlapWords <= 0 {
		p.MinOverlapWords = d.MinOverlapWords
	}
	if p.MaxNameLength <= 0 {
		p.MaxNameLength = d.MaxNameLength
	}

	return p
}
