// Package version reports the build version injected at link time.
package version

import "fmt"

// Set with -ldflags "-X github.com/rshade/rowprompt/pkg/version.version=v1.2.3".
//
//nolint:gochecknoglobals // Populated by the linker.
var (
	version   = "0.0.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the semantic version of this build.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}

// GetFullVersion returns version, commit and build date on one line.
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate)
}
