package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	phoneMinDigits = 7
	phoneMaxDigits = 15
)

// Length counts code points of s after NFC normalisation, so a precomposed
// and a decomposed "é" both count as one.
func Length(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// IsEmail reports whether s has exactly one "@", non-blank local and domain
// parts without whitespace, and a domain containing a dot that is neither its
// first nor its last character.
func IsEmail(s string) bool {
	if strings.Count(s, "@") != 1 || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	if local == "" || domain == "" {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return strings.Contains(domain, ".")
}

// IsPhone reports whether s is made of digits separated by spaces, dashes or
// parentheses, with an optional leading "+", and carries 7 to 15 digits.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits := 0
	for idx, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ', r == '-', r == '(', r == ')':
		case r == '+' && idx == 0:
		default:
			return false
		}
	}
	return digits >= phoneMinDigits && digits <= phoneMaxDigits
}
