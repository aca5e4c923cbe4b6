package textmatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Submit ", "submit"},
		{"Save\n\t changes!", "save changes"},
		{"ＡＢＣ", "abc"},
		{"...", ""},
		{"Sign-in, please.", "signin please"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Submit", "submit "))
	assert.Equal(t, 0.0, Similarity("", "Submit"))
	assert.Equal(t, SubstringScore, Similarity("Save", "Save draft"))
	assert.Equal(t, SubstringScore, Similarity("Save draft", "save"))
	assert.InDelta(t, 0.5, Similarity("abcd", "abxy"), 1e-9)
}

func TestVerifyThresholdBoundary(t *testing.T) {
	exact := Similarity("abcdefghij", "abcdefgxyz")
	assert.Equal(t, 0.7, exact)
	assert.False(t, exact < VerifyThreshold, "0.70 must pass")

	a := strings.Repeat("a", 69) + strings.Repeat("b", 31)
	b := strings.Repeat("a", 69) + strings.Repeat("c", 31)
	below := Similarity(a, b)
	assert.Equal(t, 0.69, below)
	assert.True(t, below < VerifyThreshold, "0.69 must fail")
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
	assert.Equal(t, "a b c", Collapse("  a \n b   c "))
}
