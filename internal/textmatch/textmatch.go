// Package textmatch compares element texts the way users perceive them:
// case, width, punctuation and whitespace differences do not count.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// VerifyThreshold is the minimum similarity for a located element's text
	// to be accepted against the captured text.
	VerifyThreshold = 0.7
	// FuzzyThreshold is the minimum similarity for a text-based locator to
	// consider an element a match.
	FuzzyThreshold = 0.8
	// SubstringScore is returned when one normalized text contains the other.
	SubstringScore = 0.85
)

// Normalize folds case, applies NFKC, drops punctuation and collapses runs
// of whitespace into single spaces.
func Normalize(s string) string {
	s = norm.NFKC.String(cases.Fold().String(s))
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsPunct(r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Similarity returns a score in [0,1] for two texts after normalization.
// Equal texts score 1, containment scores SubstringScore, everything else is
// the Levenshtein distance normalized by the longer length.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return SubstringScore
	}
	longest := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > longest {
		longest = n
	}
	dist := fuzzy.LevenshteinDistance(na, nb)
	return float64(longest-dist) / float64(longest)
}

// Collapse trims s and collapses inner whitespace without other normalization.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
