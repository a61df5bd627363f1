// Package security cleans user supplied text before it is stored.
package security

import (
	"strings"
	"unicode"
)

// SanitizeString trims surrounding whitespace and drops NUL and control
// characters. Newlines and tabs are kept.
func SanitizeString(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}

// SanitizeStrings applies SanitizeString to every element and drops the
// entries left empty
func SanitizeStrings(inputs []string) []string {
	var out []string
	for _, in := range inputs {
		if s := SanitizeString(in); s != "" {
			out = append(out, s)
		}
	}
	return out
}
