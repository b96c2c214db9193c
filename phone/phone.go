// Package phone canonicalizes raw phone numbers into an E.164-like form.
//
// Canonicalization is best-effort and based on a default country code. It does
// not validate that the result is a dialable number.
package phone

import "strings"

// Normalize converts raw into a "+<country><number>" string.
//
// The rules are applied in order:
//
//  1. parenthesized groups such as "(0039)" are removed
//  2. every character except digits is dropped, keeping a leading "+"
//  3. a "00" prefix becomes "+"
//  4. a leading "0" without "+" is stripped and "+<defaultCountryCode>" is prepended
//  5. any other number without "+" gets "+<defaultCountryCode>" prepended
//  6. a number that already starts with "+" is left as is
//
// Empty input, or input without any digit, returns "".
func Normalize(raw, defaultCountryCode string) string {
	s := strings.TrimSpace(stripGroups(raw))
	if s == "" {
		return ""
	}

	plus := strings.HasPrefix(s, "+")
	digits := onlyDigits(s)
	if digits == "" {
		return ""
	}

	switch {
	case plus:
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode(defaultCountryCode) + strings.TrimLeft(digits, "0")
	default:
		return "+" + countryCode(defaultCountryCode) + digits
	}
}

// stripGroups removes every "(...)" group, including nested ones.
// An unbalanced "(" drops the remainder of the string.
func stripGroups(s string) string {
	if !strings.ContainsRune(s, '(') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// countryCode accepts "39", "+39" and "0039".
func countryCode(cc string) string {
	cc = onlyDigits(cc)
	return strings.TrimPrefix(cc, "00")
}
