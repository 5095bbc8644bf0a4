// Package textutil provides the text canonicalization and similarity helpers
// used to compare catalog names against timeline captions.
//
// The primary use cases are:
//   - Normalizing free-text names into a lowercase ASCII form for comparison
//   - Extracting a candidate item name from a raw message caption
//   - Scoring word overlap and edit-distance similarity between names
//
// Normalization transliterates accented and non-Latin characters, drops
// parenthesized and bracketed annotations, and collapses punctuation and
// whitespace into single spaces. Every helper is pure and safe for concurrent
// use.
package textutil
