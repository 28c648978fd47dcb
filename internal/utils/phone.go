package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhoneNumber is returned when a raw number cannot be normalized.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// DigitsOnly strips every non-digit character from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeE164 canonicalizes a user-entered phone number to E.164 with the
// given country code. The number may arrive with spaces, hyphens, parentheses
// or an explicit country prefix ("7123-4567", "+503 7123 4567"); all of them
// normalize to the same canonical form. A number written with an explicit "+"
// must carry our country code. After removing the country prefix the local
// part must be exactly localDigits digits long.
func NormalizeE164(raw, countryCode string, localDigits int) (string, error) {
	digits := DigitsOnly(raw)
	if digits == "" {
		return "", ErrInvalidPhoneNumber
	}

	ccDigits := DigitsOnly(countryCode)
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		if !strings.HasPrefix(digits, ccDigits) {
			return "", ErrInvalidPhoneNumber
		}
		digits = digits[len(ccDigits):]
	} else if strings.HasPrefix(digits, ccDigits) && len(digits) == len(ccDigits)+localDigits {
		digits = digits[len(ccDigits):]
	}

	if len(digits) != localDigits {
		return "", ErrInvalidPhoneNumber
	}

	return "+" + ccDigits + digits, nil
}

// WaMeURL builds a WhatsApp deep link from an E.164 number. Returns "" when
// the number contains no digits.
func WaMeURL(e164 string) string {
	digits := DigitsOnly(e164)
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits
}
