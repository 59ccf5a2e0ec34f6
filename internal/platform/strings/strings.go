// Package strings holds the few string helpers the stdlib lacks
package strings

import (
	std "strings"
	"unicode/utf8"
)

// IfEmpty is in, or def when in has no elements
func IfEmpty[T any](in, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// MustPrefix turns " admin/ " into "/admin", panicking when only "/" would be left
func MustPrefix(s string) string {
	p := std.Trim(std.TrimSpace(s), "/ ")
	if p == "" {
		panic("route prefix is empty")
	}
	return "/" + p
}

// Clip keeps at most n bytes of s, backing off to a rune boundary
func Clip(s string, n int) string {
	switch {
	case n <= 0:
		return ""
	case len(s) <= n:
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
