package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// annotationPattern matches innermost (...) and [...] groups.
	annotationPattern = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]`)
	// nonAlnumPattern matches runs of characters outside the canonical alphabet.
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize converts free text into its canonical comparison form: ASCII,
// lowercase, without annotations, with punctuation replaced by single spaces.
// Empty input yields an empty string. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = stripAnnotations(text)
	text = unidecode.Unidecode(foldMarks(text))
	text = strings.ToLower(text)
	text = nonAlnumPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// Words splits a normalized string into its unique words, keeping first-seen
// order.
func Words(normalized string) []string {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		words = append(words, field)
	}
	return words
}

// WordSet returns the words of a normalized string as a lookup set.
func WordSet(normalized string) map[string]struct{} {
	words := Words(normalized)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments must already be normalized.
func ContainsPhrase(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

func stripAnnotations(text string) string {
	for {
		stripped := annotationPattern.ReplaceAllString(text, " ")
		if stripped == text {
			return text
		}
		text = stripped
	}
}

// foldMarks applies compatibility decomposition and drops combining marks so
// full-width forms and ligatures reach the transliterator in their base form.
func foldMarks(text string) string {
	chain := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, text)
	if err != nil {
		return text
	}
	return folded
}
