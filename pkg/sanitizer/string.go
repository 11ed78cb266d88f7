package sanitizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var turkishLower = cases.Lower(language.Turkish)

// Trim removes leading and trailing whitespace from a string.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// ToLower converts a string to lowercase with Turkish casing rules, so that
// dotted and dotless i fold the way Turkish readers expect.
func ToLower(s string) string {
	return turkishLower.String(s)
}

// TrimLower combines Trim and ToLower.
func TrimLower(s string) string {
	return ToLower(strings.TrimSpace(s))
}
