package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// Fold lowercases s using Unicode case folding. Slug and email uniqueness
// checks compare folded values so "Admin" and "admin" collide.
func Fold(s string) string {
	return foldCaser.String(strings.TrimSpace(s))
}

// Slugify converts a display name into a URL-safe slug: folded, with runs of
// non-alphanumeric characters collapsed into single dashes.
func Slugify(s string) string {
	folded := Fold(s)
	var b strings.Builder
	lastDash := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
