package buildconfig

import "runtime"

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// Info is the build description reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

func VersionInfo() Info {
	return Info{Version: version, Commit: commit, GoVersion: runtime.Version()}
}
