package filter

import (
	"fmt"
	"strings"
	"time"
)

// Equals renders `field = "value"`. Values containing a quote or a backslash
// are rejected because filter string literals carry no escape sequences.
func Equals(field, value string) (string, error) {
	if strings.ContainsAny(value, "\"\\") {
		return "", fmt.Errorf("value for %s contains an unsupported character", field)
	}
	return fmt.Sprintf("%s = %q", field, value), nil
}

// After renders `field > timestamp("...")`.
func After(field string, at time.Time) string {
	return fmt.Sprintf("%s > timestamp(%q)", field, at.UTC().Format(time.RFC3339Nano))
}

// Before renders `field < timestamp("...")`.
func Before(field string, at time.Time) string {
	return fmt.Sprintf("%s < timestamp(%q)", field, at.UTC().Format(time.RFC3339Nano))
}

// And joins non-empty terms with AND.
func And(terms ...string) string {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		if strings.TrimSpace(term) != "" {
			parts = append(parts, term)
		}
	}
	return strings.Join(parts, " AND ")
}
