// Package normalize converts textual field values from the raw extract into
// canonical typed values. Every function reports whether the input was
// representable instead of returning a best-effort guess.
package normalize

import (
	"strings"
	"time"
	"unicode"
)

// PhonePrefix is prepended to every canonical phone number
const PhonePrefix = "+91-"

// dateLayouts are tried in order; the first match wins.
// "01-02-2024" is therefore the 1st of February.
var dateLayouts = []string{
	"2-1-2006",
	"2006/1/2",
	"2006-1-2",
}

// Date parses a calendar date in one of the accepted layouts
func Date(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Phone keeps the digits of value and accepts exactly ten of them
func Phone(value string) (string, bool) {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 10 {
		return "", false
	}
	return PhonePrefix + digits, true
}

// Category trims, lowercases and title-cases a category label
func Category(value string) string {
	return titleCase(strings.ToLower(strings.TrimSpace(value)))
}

// Email trims and lowercases an address
func Email(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "e-books" -> "E-Books".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
