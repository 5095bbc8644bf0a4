package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxNameLength bounds how long an unstructured caption may be before
// it is no longer treated as a bare item name.
const DefaultMaxNameLength = 100

var (
	// numericRangePattern matches inventory ranges such as "1492-1497",
	// including the line break that usually precedes them.
	numericRangePattern = regexp.MustCompile(`\n?[ \t]*\d+[ \t]*-[ \t]*\d+`)
	numericTokenPattern = regexp.MustCompile(`\b\d+\b`)
)

// nameSeparators are tried in order; the first one present in the caption
// decides where the name ends.
var nameSeparators = []string{"\n", " - ", " – ", " — ", " | "}

// ExtractName pulls a candidate item name out of a raw caption. The result is
// normalized. ok is false when the caption is empty or too unstructured to
// yield a name safely.
func ExtractName(raw string, maxLen int) (string, bool) {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}
	cleaned := numericRangePattern.ReplaceAllString(raw, "")
	cleaned = numericTokenPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(stripAnnotations(cleaned))
	if cleaned == "" {
		return "", false
	}

	// Only the text before a separator can be the name. When that text is
	// empty, the next separator in the list gets a chance.
	split := false
	for _, sep := range nameSeparators {
		head, _, found := strings.Cut(cleaned, sep)
		if !found {
			continue
		}
		split = true
		if name := Normalize(head); name != "" {
			return name, true
		}
	}
	if split {
		return "", false
	}

	if utf8.RuneCountInString(cleaned) >= maxLen {
		return "", false
	}
	name := Normalize(cleaned)
	return name, name != ""
}
