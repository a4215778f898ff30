// Package env reads process environment outside of the envconfig-driven pkg/config, for the
// few values needed before config loads.
package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
