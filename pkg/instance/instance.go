package instance

import (
	"os"

	"github.com/starfeed/backend/pkg/env"
)

// GetID names the running process for logs and cron lock ownership.
// STARFEED_INSTANCE_ID wins, then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.Get("STARFEED_INSTANCE_ID", ""); id != "" {
		return id
	}
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
