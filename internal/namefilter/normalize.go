// Package namefilter decides whether a proposed team name is acceptable by
// comparing its normalized form against the banned-name list.
package namefilter

import (
	"strings"
	"unicode"
)

// isSpace reports whether r is whitespace in the sense of the ECMAScript \s
// class: Unicode space separators plus tab, line feed, vertical tab, form
// feed, carriage return, the line and paragraph separators and U+FEFF.
// U+0085 is not whitespace here.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

var leet = strings.NewReplacer("0", "o", "1", "i", "3", "e", "4", "a", "5", "s")

// Normalize returns the canonical form of s used for banned-name comparison.
// It lowercases s, folds the digits 0 1 3 4 5 to the letters they imitate,
// drops everything except ASCII letters, digits and whitespace (see isSpace),
// and collapses whitespace runs into single spaces. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = leet.Replace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case isSpace(r):
			pendingSpace = b.Len() > 0
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes s for use inside a LIKE pattern with ESCAPE '\', so that
// it matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
