// Package report parses the external simulator's output formats:
// spreadsheet-XML optimization results, UTF-16LE single-run HTML reports,
// and the deal-stream trade list embedded in the latter (spec §4.2, C3).
package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseNumber disambiguates comma/dot decimal conventions the way MT-style
// reports mix them: "2,656.13" (comma thousands, dot decimal),
// "2 656.13" (space thousands), and the plain "2656.13"/"2656,13"
// single-separator forms.
// Rule (spec §4.2): when both separators are present, comma is treated
// as the thousands separator, so "2.656,13" reads as 2.65613.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, " ", "")

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// "2,656.13" - comma is thousands.
		s = strings.ReplaceAll(s, ",", "")
	case hasComma:
		s = disambiguateSingleSeparator(s, ',')
	case hasDot:
		// Dot alone is ambiguous too ("1.234" could be thousands or a
		// decimal); the simulator's own convention for plain fields is
		// decimal-dot, so a single dot is always the decimal point and
		// only a string with more than one dot is treated as grouping
		// (every dot stripped).
		if strings.Count(s, ".") > 1 {
			s = disambiguateSingleSeparator(s, '.')
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// disambiguateSingleSeparator handles the case where only one kind of
// separator character is present: if it looks like thousands grouping
// (more than one occurrence, or a single occurrence with at most 3 digits
// before it and exactly 3 after), every instance is stripped; otherwise the
// single occurrence is treated as the decimal point.
func disambiguateSingleSeparator(s string, sep byte) string {
	parts := strings.Split(s, string(sep))
	if len(parts) <= 1 {
		return s
	}
	looksGrouped := len(parts) > 2
	if !looksGrouped {
		looksGrouped = len(parts[len(parts)-1]) == 3 && len(parts[0]) <= 3
	}
	if looksGrouped {
		return strings.Join(parts, "")
	}
	// Single separator, not a grouping pattern: decimal point.
	joined := strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	return joined
}

var percentSuffixRe = regexp.MustCompile(`^(.*?)\s*\(([-0-9.,\s]+)%\)\s*$`)
var parenSuffixRe = regexp.MustCompile(`^(.*?)\s*\(([-0-9.,\s]+)\)\s*$`)

// ParseComposite splits a composite field like "2 656.13 (82.77%)" into
// its primary value and the percentage in parentheses, or "10 (112.55)"
// into a primary value and a secondary figure (e.g. a streak's profit).
// Either suffix form is optional; when absent, hasSecondary is false.
func ParseComposite(s string) (primary float64, secondary float64, hasSecondary bool) {
	s = strings.TrimSpace(s)
	if m := percentSuffixRe.FindStringSubmatch(s); m != nil {
		p, _ := ParseNumber(m[1])
		sec, ok := ParseNumber(m[2])
		return p, sec, ok
	}
	if m := parenSuffixRe.FindStringSubmatch(s); m != nil {
		p, _ := ParseNumber(m[1])
		sec, ok := ParseNumber(m[2])
		return p, sec, ok
	}
	p, _ := ParseNumber(s)
	return p, 0, false
}

var dateLayouts = []string{
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDatetime tries each known MT-report date/time layout in turn, then
// falls back to interpreting the string as a Unix epoch (seconds) if it
// is purely numeric. Returns the zero time and false if nothing matches.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
