// Package instance names the running process in logs and lock ownership records.
package instance

import (
	"os"

	"github.com/angelmondragon/cakestore-backend/pkg/env"
)

const fallbackID = "local"

// GetID prefers an explicit CAKESTORE_INSTANCE_ID, then the platform-provided WORKER_ID or
// DYNO, then the hostname.
func GetID() string {
	if id := env.First("", "CAKESTORE_INSTANCE_ID", "WORKER_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
