// Package version provides build and version information for pulse.
package version

import (
	"fmt"
	"runtime"
)

// Build identification, overridden via ldflags at release time:
//
//	-X github.com/UncleTupelo/pulse/pkg/version.Version=v1.2.3
//	-X github.com/UncleTupelo/pulse/pkg/version.Commit=abc1234
//	-X github.com/UncleTupelo/pulse/pkg/version.Date=2026-08-30T00:00:00Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	// GoVersion is resolved at runtime, not injected.
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the full single-line version string.
func String() string {
	return fmt.Sprintf("pulse %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
