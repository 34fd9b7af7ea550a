// Package instance names the running replica for log correlation.
package instance

import (
	"os"

	"github.com/angelmondragon/grocer-backend/pkg/env"
)

// GetID prefers an explicit WORKER_ID, then the platform's dyno or pod name,
// then the hostname.
func GetID() string {
	if id := env.First("WORKER_ID", "DYNO", "POD_NAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
