// Package rut normalizes and validates Chilean RUT identifiers
// (digits plus a mod-11 check character, e.g. "12345678-5").
package rut

import "strings"

// Normalize strips everything but digits and the K check character, upper-
// cases, and inserts the dash before the final character. Idempotent: a
// normalized RUT normalizes to itself.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if (r >= '0' && r <= '9') || r == 'K' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) < 2 {
		return s
	}
	return s[:len(s)-1] + "-" + s[len(s)-1:]
}

// CheckDigit computes the mod-11 check character for the numeric part.
func CheckDigit(num string) byte {
	sum := 0
	factor := 2
	for i := len(num) - 1; i >= 0; i-- {
		c := num[i]
		if c < '0' || c > '9' {
			return 0
		}
		sum += int(c-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch rest := 11 - sum%11; rest {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + rest)
	}
}

// Valid reports whether the normalized RUT carries the right check digit.
func Valid(raw string) bool {
	s := Normalize(raw)
	i := strings.IndexByte(s, '-')
	if i < 1 || i != len(s)-2 {
		return false
	}
	num, dv := s[:i], s[i+1]
	want := CheckDigit(num)
	return want != 0 && dv == want
}
