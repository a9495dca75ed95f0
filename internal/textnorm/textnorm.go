// Package textnorm strips diacritics from user supplied text so it can be
// used in filenames and in chat messages rendered by constrained clients.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Strip decomposes s, drops the combining marks and recomposes what is left,
// so "José" becomes "Jose". Bytes that are not valid UTF-8 are copied through
// untouched.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	if utf8.ValidString(s) {
		return stripValid(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		n := validPrefix(s)
		b.WriteString(stripValid(s[:n]))
		if n == len(s) {
			break
		}
		// s[n] starts an invalid sequence; copy the single byte as is.
		b.WriteByte(s[n])
		s = s[n+1:]
	}
	return b.String()
}

func stripValid(s string) string {
	if s == "" {
		return ""
	}
	// Chains carry state, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func validPrefix(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(s)
}
