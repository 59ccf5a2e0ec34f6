// Package version reports the build stamped in with -ldflags -X
package version

// set with -ldflags "-X penwatch/internal/core/version.version=v1.2.0 ..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// BuildInfo identifies a binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info is this binary's build
func Info() BuildInfo {
	return BuildInfo{Service: "penwatch", Version: version, Commit: commit, Date: date}
}
