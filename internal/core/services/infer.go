package services

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// dateLayouts are tried in order. Month-first slash dates are tried before day-first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"02/01/2006",
	"02.01.2006",
	"02-01-2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, 2 Jan 2006",
}

// compactDateLayout is only accepted when the key expects a date;
// otherwise "20240101" is a number.
const compactDateLayout = "20060102"

// currencyCodes are stripped from numeric strings such as "EUR 1.234,56".
var currencyCodes = []string{"USD", "EUR", "GBP", "CHF", "JPY", "CAD", "AUD", "INR", "CNY", "SEK", "NOK", "DKK", "PLN"}

// InferType returns the field type to use for a value of the given key hint.
//
// Text-hinted keys stay text. JSON numbers are numbers. Strings are dates when
// they parse as a date (compact YYYYMMDD only with a date hint), numbers when they
// parse after stripping currency markers and separators, and text otherwise.
func InferType(v domain.Value, hint domain.FieldType) domain.FieldType {
	if hint == domain.FieldShortText {
		return domain.FieldShortText
	}

	switch v.Kind {
	case domain.ValueNumber:
		if hint == domain.FieldDate {
			if _, _, ok := ParseDate(v.String(), true); ok {
				return domain.FieldDate
			}
		}
		return domain.FieldNumber
	case domain.ValueString:
	default:
		return domain.FieldShortText
	}

	if _, _, ok := ParseDate(v.Str, hint == domain.FieldDate); ok {
		return domain.FieldDate
	}
	if hint == domain.FieldDate {
		return domain.FieldShortText
	}
	if _, ok := ParseNumber(v.Str); ok {
		return domain.FieldNumber
	}
	return domain.FieldShortText
}

// ParseDate parses s as a date. allowCompact enables the digit-only YYYYMMDD form.
// hasTime is true when the input carried a time of day.
func ParseDate(s string, allowCompact bool) (t time.Time, hasTime bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}

	if isDigits(s) {
		if !allowCompact || len(s) != len(compactDateLayout) {
			return time.Time{}, false, false
		}
		parsed, err := time.Parse(compactDateLayout, s)
		return parsed, false, err == nil
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return parsed, strings.Contains(layout, "15:04"), true
	}
	return time.Time{}, false, false
}

// ParseNumber parses a numeric string, tolerating currency symbols and codes,
// thousands separators, a decimal comma and accounting-style negatives "(12.50)".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for _, code := range currencyCodes {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, code), code))
	}
	if !digitGroupsValid(s) {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '+':
			if b.Len() > 0 {
				return 0, false
			}
			if r == '-' {
				negative = !negative
			}
		case unicode.Is(unicode.Sc, r), unicode.IsSpace(r), r == '\'':
			// currency symbols and digit grouping
		default:
			return 0, false
		}
	}

	num := normaliseSeparators(b.String())
	if num == "" || !strings.ContainsAny(num, "0123456789") {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// digitGroupsValid reports whether every run of spaces or apostrophes between two
// digits separates thousands: the run before it has at most three digits and the
// run after it exactly three. "1 234 567" passes, "+1 555 123 4567" does not.
func digitGroupsValid(s string) bool {
	prev, prevSpaced := 0, false
	cur, curSpaced := 0, false
	inGap := false

	end := func() bool {
		if cur == 0 {
			return true
		}
		if curSpaced && cur != 3 {
			return false
		}
		prev, prevSpaced, cur = cur, curSpaced, 0
		return true
	}

	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			if cur == 0 {
				curSpaced = inGap
				if inGap && !prevSpaced && prev > 3 {
					return false
				}
			}
			cur++
			inGap = false
		case unicode.IsSpace(r), r == '\'':
			if cur > 0 {
				if !end() {
					return false
				}
				inGap = true
			}
		default:
			if !end() {
				return false
			}
			inGap = false
		}
	}
	return end()
}

// normaliseSeparators rewrites "1.234,56" and "1,234.56" to "1234.56".
func normaliseSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		// A single comma not followed by exactly three digits is a decimal comma.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
