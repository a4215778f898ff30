package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches raw input case-insensitively against the known values of an enum.
func parse[T ~string](raw, label string, known []T) (T, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range known {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", label, raw)
}

func known[T ~string](v T, values []T) bool {
	return slices.Contains(values, v)
}
