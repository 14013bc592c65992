package aadhaar

import (
	"errors"
	"strings"
	"unicode"
)

// Length is the amount of digits an identifier consists of
const Length = 12

// ErrInvalid is returned whenever an identifier does not consist of exactly 12 decimal digits
var ErrInvalid = errors.New("identifier must consist of exactly 12 digits")

// Normalize strips every whitespace character out of the given raw identifier and verifies that exactly 12 ASCII
// digits remain
func Normalize(raw string) (string, error) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	if len(normalized) != Length {
		return "", ErrInvalid
	}
	for i := 0; i < len(normalized); i++ {
		if normalized[i] < '0' || normalized[i] > '9' {
			return "", ErrInvalid
		}
	}
	return normalized, nil
}

// Mask hides all but the last four digits of an identifier so it can be logged or persisted
func Mask(identifier string) string {
	if len(identifier) <= 4 {
		return strings.Repeat("X", len(identifier))
	}
	return strings.Repeat("X", len(identifier)-4) + identifier[len(identifier)-4:]
}
