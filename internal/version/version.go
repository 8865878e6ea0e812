// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata as printed by --version.
func String() string {
	return fmt.Sprintf("shapectx %s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
