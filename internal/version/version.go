// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the release tag, or "dev"
	Version = "dev"
	// Commit is the git commit hash
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata on one line
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}
