// Package phone canonicalizes phone numbers and exposes the metadata that the
// libphonenumber data set carries for them (carrier, region, time zones).
package phone

import (
	"strings"
	"unicode"

	"github.com/polisai/phonescope/pkg/domain"
)

// E.164 bounds on the number of digits, country code included.
const (
	MinDigits = 4
	MaxDigits = 15
)

// separators are stripped from user input before validation.
const separators = "-.()/"

// Normalize canonicalizes raw into digits only. Whitespace and common
// separators are removed, then a leading "+" or any leading "00" international
// prefixes. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))

	plus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsSpace(r) || strings.ContainsRune(separators, r):
			continue
		case r == '+':
			if i != 0 || plus {
				return "", domain.NewInputError(raw, "unexpected '+'")
			}
			plus = true
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", domain.NewInputError(raw, "contains non-digit characters")
		}
	}

	digits := b.String()
	for strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	switch {
	case digits == "":
		return "", domain.NewInputError(raw, "no digits")
	case len(digits) < MinDigits:
		return "", domain.NewInputError(raw, "too short")
	case len(digits) > MaxDigits:
		return "", domain.NewInputError(raw, "too long")
	}
	return digits, nil
}

// MustNormalize is Normalize for inputs known to be valid, such as test fixtures.
func MustNormalize(raw string) string {
	digits, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return digits
}
