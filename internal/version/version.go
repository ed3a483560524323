// Package version carries build metadata injected at link time via -ldflags.
package version

import "fmt"

var (
	// Version is the release version of the field tooling
	Version = "dev"
	// GitSHA is the git commit SHA the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("gaussnerf %s (%s, built %s)", Version, GitSHA, BuildTime)
}
