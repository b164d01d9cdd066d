package utils

import (
	"fmt"
	"regexp"
	"strconv"

	"carboniq/pkg/models"
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,128}$`)

// ValidateID checks user, report and institution identifiers
func ValidateID(field, id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %s is malformed", models.ErrInvalidInput, field)
	}
	return nil
}

// ParseLimit reads a positive limit, falling back to def and capping at max
func ParseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// ParseOffset reads a non-negative offset
func ParseOffset(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
