// Package clean standardizes text, phone, email, and date fields in raw
// record sets. All transforms are idempotent: re-applying any of them to
// its own output yields the same value.
package clean

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// emailShape is a deliberately loose address check: something before an
// @, something after it, and a dot in the domain part.
var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var nonDigits = regexp.MustCompile(`\D`)

// dateLayouts are the accepted source date formats, tried in order. The
// canonical output layout (RFC 3339) comes first so standardized values
// re-parse on the first attempt.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Text trims, lowercases, then title-cases a free-text value word by
// word ("  john DOE " -> "John Doe").
func Text(s string) string {
	caser := cases.Title(language.English)
	return caser.String(strings.ToLower(strings.TrimSpace(s)))
}

// Phone normalizes a phone number to +1-XXX-XXX-XXXX. Ten-digit numbers
// get the +1 country code; eleven digits with a leading 1 are treated as
// already carrying it. Anything else is returned unchanged with ok
// false so the caller can flag it. Empty input is a valid null.
func Phone(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", true
	}

	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return s, false
	}
	return "+1-" + digits[0:3] + "-" + digits[3:6] + "-" + digits[6:10], true
}

// Email trims and lowercases an address. The normalized value is always
// returned; ok is false when it fails the basic shape check. Empty input
// is a valid null.
func Email(s string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", true
	}
	return norm, emailShape.MatchString(norm)
}

// Date parses a date or timestamp from the accepted layouts and returns
// it in canonical RFC 3339 UTC form. Unparsable values return "" with ok
// false: the explicit missing marker. Empty input is a valid null.
func Date(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}
