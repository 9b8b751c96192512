package app

import (
	"regexp"
	"strings"
)

// Nigerian mobile numbers: local form 0[7-9][01]XXXXXXXX or international
// form 234[7-9][01]XXXXXXXX.
var nigerianPhonePattern = regexp.MustCompile(`^(0[7-9][01]\d{8}|234[7-9][01]\d{8})$`)

// NormalizePhone strips formatting characters and validates the result as a
// Nigerian mobile number. The cleaned number is returned unchanged in form
// (local numbers stay local), so the delivery provider receives exactly what
// the user typed, minus whitespace.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimPrefix(cleaned, "+")

	if !nigerianPhonePattern.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}
