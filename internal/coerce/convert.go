package coerce

// convert.go holds the per-value conversions. They cope with the usual mess in
// spreadsheet exports:
//   - US, European and ISO date formats, with or without a time of day
//   - currency symbols, thousands separators and accounting negatives
//   - stray and repeated whitespace
//
// Each function reports whether the value was recognised. Callers keep the
// raw value when it was not.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// numericRegex validates a number after cleanup: integers, decimals and
// scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// integerRegex accepts whole numbers, allowing a zero fraction such as 1000.00.
var integerRegex = regexp.MustCompile(`^([+-]?\d+)(\.0*)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future are moved back a century.
var TwoDigitYearPivot = 20

// now is replaced in tests.
var now = time.Now

// Date layouts split by year format for 2-digit year handling. Month-first
// layouts come before day-first ones, so 01/02/2025 is January 2nd.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "2/1/06", "02/01/06",
		"1-2-06", "2-1-06",
		"2.1.06", "02.01.06",
		"2-Jan-06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "2/1/2006", "02/01/2006",
		"1-2-2006", "01-02-2006", "2-1-2006", "02-01-2006",
		"2.1.2006", "02.01.2006", "1.2.2006",
		"Jan 2, 2006", "January 2, 2006", "Jan 2 2006",
		"2 Jan 2006", "2 January 2006", "2-Jan-2006",
		"20060102",
	}
	timeLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
		"2/1/2006 15:04",
	}
)

// Date parses s and returns it as YYYY-MM-DD. When keepTime is set and s
// carries a time of day, the full RFC 3339 form is returned instead.
func Date(s string, keepTime bool) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if keepTime {
				return t.Format(time.RFC3339), true
			}
			return t.Format(time.DateOnly), true
		}
	}

	// 4-digit year layouts first, they are unambiguous
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}

	pivotYear := now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t.Format(time.DateOnly), true
		}
	}

	return "", false
}

// Integer parses a whole number, ignoring thousands separators.
func Integer(s string) (string, bool) {
	s = stripSeparators(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}

	m := integerRegex.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

// Decimal parses a number, accepting currency symbols, thousands separators
// and accounting negatives such as (12.50). A non-negative scale rounds the
// result to that many places; trailing zeros are dropped.
func Decimal(s string, scale int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "").Replace(s)
	s = stripSeparators(s)

	if negative {
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			return "", false
		}
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}

	out := strconv.FormatFloat(f, 'f', scale, 64)
	if scale != 0 && strings.Contains(out, ".") {
		out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	}
	if out == "-0" {
		out = "0"
	}
	return out, true
}

// Text trims s, collapses internal whitespace runs to one space and applies
// Unicode NFC normalization.
func Text(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// stripSeparators removes thousands separators and any whitespace,
// including the non-breaking spaces some locales group digits with.
func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || r == '_' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
