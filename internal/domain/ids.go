package domain

import (
	"fmt"
	"strings"
)

// MaxIDLength bounds user, profile and record identifiers.
const MaxIDLength = 64

// CheckID trims an identifier and rejects empty or oversized values.
func CheckID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if len(id) > MaxIDLength {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, MaxIDLength)
	}
	return id, nil
}

// OrderedPair returns the two ids in canonical (low, high) order so an
// unordered pair maps to exactly one key.
func OrderedPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
