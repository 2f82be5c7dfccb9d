// Package version provides build information for the verifier binaries.
package version

import "fmt"

// BuildInfo holds version information about the build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Info() BuildInfo {
	// Set via -ldflags "-X 'tagvalidate/internal/core/version.version=v0.0.1'
	// -X 'tagvalidate/internal/core/version.commit=abcd' -X 'tagvalidate/internal/core/version.date=2026-10-01'"
	return BuildInfo{
		Service: "tagvalidate-gerrit",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// UserAgent is sent on every outbound Gerrit request
func UserAgent() string {
	bi := Info()
	return fmt.Sprintf("%s/%s (+%s)", bi.Service, bi.Version, bi.Commit)
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
