package identifier

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	digitsRe       = regexp.MustCompile(`^\d+$`)
	hexRunRe       = regexp.MustCompile(`[0-9a-fA-F]{8,}`)
	uuidRe         = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reactIDRe      = regexp.MustCompile(`^:[rR][0-9a-zA-Z]*:$|^«r[0-9a-z]+»$`)
	muiIDRe        = regexp.MustCompile(`^mui-\d+$|^mui-[a-z]+-\d+$`)
	emberIDRe      = regexp.MustCompile(`^ember\d+$`)
	timestampRe    = regexp.MustCompile(`\d{10,13}`)
	randomSuffixRe = regexp.MustCompile(`[-_]([a-zA-Z0-9]{5,})$`)
	nanoIDRe       = regexp.MustCompile(`^[A-Za-z0-9_-]{21}$`)
)

// framework-internal id prefixes
var generatedPrefixes = []string{
	"radix-", "headlessui-", "react-aria", "__next", "rc-tabs-", "rc_select_",
	"downshift-", "tippy-", "ext-gen", "yui_", "floating-ui-", "chakra-",
}

// IsDynamicID reports whether id looks generated at render time and would
// not survive a reload.
func IsDynamicID(id string) bool {
	if id == "" {
		return true
	}
	if digitsRe.MatchString(id) || uuidRe.MatchString(id) || reactIDRe.MatchString(id) ||
		muiIDRe.MatchString(id) || emberIDRe.MatchString(id) || timestampRe.MatchString(id) {
		return true
	}
	for _, p := range generatedPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	for _, run := range hexRunRe.FindAllString(id, -1) {
		if strings.IndexFunc(run, unicode.IsDigit) >= 0 {
			return true
		}
	}
	if nanoIDRe.MatchString(id) && mixedAlnum(id) {
		return true
	}
	if m := randomSuffixRe.FindStringSubmatch(id); m != nil && strings.IndexFunc(m[1], unicode.IsDigit) >= 0 {
		return true
	}
	return false
}

func mixedAlnum(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

var (
	utilityRe = regexp.MustCompile(`^-?(m|p)[trblxyse]?-|^(w|h|min-w|max-w|min-h|max-h|gap|space-[xy]|inset|top|left|right|bottom|z|order|col|row|grid-cols|grid-rows|basis|flex|grow|shrink|text|bg|border|font|rounded|shadow|leading|tracking|opacity|ring|outline|divide|fill|stroke|translate|rotate|scale|duration|ease|delay|items|justify|content|self|place|overflow|cursor|select|align|whitespace|break|truncate|transition)-`)
	hashedRe  = regexp.MustCompile(`^(css|jsx|sc|emotion|styled|svelte|makeStyles|MuiBox)-`)
	moduleRe  = regexp.MustCompile(`__([A-Za-z0-9_-]{5,})$`)
)

var utilityWords = map[string]bool{
	"flex": true, "grid": true, "block": true, "inline": true, "inline-block": true, "inline-flex": true,
	"hidden": true, "relative": true, "absolute": true, "fixed": true, "sticky": true, "static": true,
	"container": true, "truncate": true, "italic": true, "underline": true, "uppercase": true, "lowercase": true,
	"active": true, "selected": true, "focus": true, "focused": true, "hover": true, "open": true, "show": true,
	"disabled": true, "visible": true, "invisible": true, "collapsed": true, "expanded": true,
}

// IsStableClass reports whether class c is worth keeping in a CSS path:
// not generated by CSS-in-JS, not a utility or responsive variant and not a
// transient state marker.
func IsStableClass(c string) bool {
	if c == "" || !cssIdentRe.MatchString(c) {
		return false
	}
	if utilityWords[c] || utilityRe.MatchString(c) || hashedRe.MatchString(c) {
		return false
	}
	for _, re := range []*regexp.Regexp{randomSuffixRe, moduleRe} {
		if m := re.FindStringSubmatch(c); m != nil && strings.IndexFunc(m[1], unicode.IsDigit) >= 0 {
			return false
		}
	}
	return true
}

// excludes responsive and variant prefixes such as md:flex and hover:bg-x
var cssIdentRe = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)
