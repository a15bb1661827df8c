// Package version exposes the agent build version.
package version

// Version is the agent version reported to the portal at check-in.
// Overridden at build time via -ldflags "-X license-monitor/agent/internal/version.Version=...".
var Version = "dev"
