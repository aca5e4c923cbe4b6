// Package locator builds and parses the selector mini-languages stored in
// fingerprints:
//
//	role=button[name="Submit"]      role plus accessible name
//	role=button[text="Save"]        role plus visible text
//	button:has-text("Save")         CSS base plus text
//
// Plain CSS and XPath selectors are stored as-is.
package locator

import (
	"regexp"
	"strings"
)

const hasTextMarker = `:has-text("`

// Quote wraps s in double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
		case '\n':
			b.WriteString(`\a `)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// Unquote reverses Quote. The input must include the surrounding quotes.
func Unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", false
	}
	s = s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", false
		}
		if strings.HasPrefix(s[i:], "a ") {
			b.WriteByte('\n')
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), true
}

// Role builds role=<role>[<key>="<value>"]. Key is "name" or "text".
func Role(role, key, value string) string {
	return "role=" + role + "[" + key + "=" + Quote(value) + "]"
}

var roleRe = regexp.MustCompile(`^role=([a-z][a-z-]*)\[(name|text)=(".*")\]$`)

// ParseRole splits a role selector.
func ParseRole(sel string) (role, key, value string, ok bool) {
	m := roleRe.FindStringSubmatch(sel)
	if m == nil {
		return "", "", "", false
	}
	value, ok = Unquote(m[3])
	if !ok {
		return "", "", "", false
	}
	return m[1], m[2], value, true
}

// HasText appends the :has-text pseudo-class to a CSS base selector.
func HasText(base, text string) string {
	return base + ":has-text(" + Quote(text) + ")"
}

// ParseHasText splits base:has-text("text"). The base is "*" when empty.
func ParseHasText(sel string) (base, text string, ok bool) {
	i := strings.Index(sel, hasTextMarker)
	if i < 0 || !strings.HasSuffix(sel, `")`) {
		return "", "", false
	}
	text, ok = Unquote(sel[i+len(":has-text(") : len(sel)-1])
	if !ok {
		return "", "", false
	}
	base = strings.TrimSpace(sel[:i])
	if base == "" {
		base = "*"
	}
	return base, text, true
}

// CSSString quotes s for use inside a CSS attribute selector.
func CSSString(s string) string {
	return Quote(s)
}

var identRe = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)

// IsIdent reports whether s can be used unescaped as a CSS identifier.
func IsIdent(s string) bool {
	return identRe.MatchString(s)
}

// IDSelector returns #id, or an attribute selector when id is not a plain
// identifier.
func IDSelector(id string) string {
	if IsIdent(id) {
		return "#" + id
	}
	return "[id=" + CSSString(id) + "]"
}
