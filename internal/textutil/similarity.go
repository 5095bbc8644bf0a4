package textutil

import "github.com/xrash/smetrics"

// Ratio computes an indel similarity score in the range [0, 100] between two
// normalized strings: 100 * (len(a)+len(b)-distance) / (len(a)+len(b)), where
// distance counts insertions and deletions only. Returns 0 if either string is
// empty.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	total := len(a) + len(b)
	// A substitution costs two so it behaves like a delete plus an insert.
	distance := smetrics.WagnerFischer(a, b, 1, 1, 2)
	if distance >= total {
		return 0
	}
	return 100 * float64(total-distance) / float64(total)
}

// Overlap returns the fraction of item words that are present in other.
// Returns 0 when item is empty.
func Overlap(item []string, other map[string]struct{}) float64 {
	if len(item) == 0 || len(other) == 0 {
		return 0
	}
	shared := 0
	for _, word := range item {
		if _, ok := other[word]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(item))
}
