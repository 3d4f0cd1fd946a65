// Package isbn cleans and validates ISBN-10/13 identifiers. The cleaned
// form is the canonical value stored and compared everywhere else.
package isbn

import "strings"

// Clean uppercases raw and strips everything except digits and X.
// Results longer than 10 characters are ISBN-13 candidates, which have no
// check letter, so X is dropped entirely. At 10 characters or fewer, X is
// only meaningful as the final check character; any earlier X is removed.
func Clean(raw string) string {
	up := strings.ToUpper(raw)
	var b strings.Builder
	b.Grow(len(up))
	for _, r := range up {
		if (r >= '0' && r <= '9') || r == 'X' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	if len(s) > 10 {
		return strings.ReplaceAll(s, "X", "")
	}

	var out strings.Builder
	out.Grow(len(s))
	for i, r := range s {
		if r == 'X' && i != len(s)-1 {
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

// ValidateISBN10 reports whether s is exactly nine digits plus a final
// digit-or-X whose weighted checksum is divisible by 11.
func ValidateISBN10(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * (10 - i)
	}
	switch c := s[9]; {
	case c == 'X':
		sum += 10
	case c >= '0' && c <= '9':
		sum += int(c - '0')
	default:
		return false
	}
	return sum%11 == 0
}

// ValidateISBN13 reports whether s is exactly thirteen digits whose
// alternating 1/3-weighted checksum matches the final digit.
func ValidateISBN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(c-'0') * w
	}
	last := s[12]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return check == int(last-'0')
}

// Validate cleans raw and dispatches on the cleaned length. Anything other
// than 10 or 13 characters, including blank input, is invalid.
func Validate(raw string) bool {
	s := Clean(raw)
	switch len(s) {
	case 10:
		return ValidateISBN10(s)
	case 13:
		return ValidateISBN13(s)
	default:
		return false
	}
}

// Normalize returns the canonical stored form of raw. Normalize is
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	return Clean(raw)
}
