package tasks

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks a candidate against the creation rules and returns one
// message per violated rule. An empty result means the candidate is
// acceptable.
func Validate(c Candidate) []string {
	var errs []string

	required := []struct {
		name  string
		value string
	}{
		{"title", c.Title},
		{"type", c.Type},
		{"priority", c.Priority},
	}
	for _, field := range required {
		if field.value == "" {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field.name))
		}
	}

	if !slices.Contains(AllTypes(), TaskType(c.Type)) {
		errs = append(errs, fmt.Sprintf("Invalid type. Must be one of: %s", joinValues(AllTypes())))
	}

	if !slices.Contains(AllPriorities(), Priority(c.Priority)) {
		errs = append(errs, fmt.Sprintf("Invalid priority. Must be one of: %s", joinValues(AllPriorities())))
	}

	return errs
}

// joinValues renders the allowed set as ['a', 'b'], the form clients of the
// API already match on.
func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "'" + string(v) + "'"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
