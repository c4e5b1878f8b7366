// Package period handles the YYYY-MM competence periods the engine
// calculates over. Periods are kept as strings: zero-padded YYYY-MM
// compares correctly with plain string ordering, which the validity-window
// checks rely on.
package period

import (
	"fmt"
	"strings"
	"time"
)

const layout = "2006-01"

// Normalize trims the input and validates it as a YYYY-MM period.
func Normalize(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	parsed, err := time.Parse(layout, trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid period %q: expected YYYY-MM", value)
	}
	return parsed.Format(layout), nil
}

// Valid reports whether value is a well-formed YYYY-MM period.
func Valid(value string) bool {
	_, err := Normalize(value)
	return err == nil
}

// Contains reports whether p falls inside the window [from, until].
// A nil bound is open-ended.
func Contains(p string, from, until *string) bool {
	if from != nil && p < *from {
		return false
	}
	if until != nil && p > *until {
		return false
	}
	return true
}
