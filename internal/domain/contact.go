package domain

import (
	"errors"
	"strings"
)

// DefaultCountryCode is the dialling code used when none is configured.
const DefaultCountryCode = "91"

// ErrInvalidContact is returned when a phone number cannot be normalized.
var ErrInvalidContact = errors.New("invalid driver contact")

// NormalizeContact reduces a phone number to its 10-digit national form.
// It accepts bare 10-digit numbers, numbers prefixed with the country code
// (with or without "+") and numbers with a leading trunk zero.
func NormalizeContact(raw string, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return digits, nil
	case len(digits) == 10+len(countryCode) && strings.HasPrefix(digits, countryCode):
		return digits[len(countryCode):], nil
	case len(digits) == 11 && digits[0] == '0':
		return digits[1:], nil
	}
	return "", ErrInvalidContact
}

// E164 formats a normalized contact for sending.
func E164(contact string, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return "+" + countryCode + contact
}
