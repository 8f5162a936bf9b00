package utils

import (
	"strings"
	"unicode"
)

const (
	MaxTeamNameLen   = 8
	MaxPlayerNameLen = 10
	MaxMessageLen    = 500
)

func Ptr[T any](v T) *T {
	return &v
}

func OrZero[T comparable](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Sanitize drops markup and control characters, collapses whitespace and
// cuts the result to max runes. max <= 0 means no limit.
func Sanitize(s string, max int) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '<' || r == '>':
			continue
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune(' ')
			}
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		space = false
		b.WriteRune(r)
	}

	out := []rune(strings.TrimSpace(b.String()))
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return strings.TrimSpace(string(out))
}

// SanitizeOrNil is Sanitize that reports an empty result as nil
func SanitizeOrNil(s string, max int) *string {
	s = Sanitize(s, max)
	if s == "" {
		return nil
	}
	return &s
}
