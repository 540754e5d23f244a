// Package version holds build-time version information.
package version

import "fmt"

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/skycms/skycms/internal/version.Version=v1.2.3 \
//	  -X github.com/skycms/skycms/internal/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/skycms/skycms/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a single-line version summary for CLI output.
func String() string {
	return fmt.Sprintf("skycms %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
