// Package version provides build and version information for searchcore.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of searchcore.
// Set via ldflags at build time, or defaults to dev:
// -X github.com/fama-labs/searchcore/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// String returns the full human-readable version line.
func String() string {
	return fmt.Sprintf("searchcore %s (commit %s, built %s, %s)", Version, Commit, Date, GoVersion)
}
