// Package version reports build metadata. The variables are set with
// -ldflags "-X github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/version.Version=...".
package version

import "runtime/debug"

var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the payload of GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the build metadata. Without ldflags the commit and date fall
// back to the VCS stamp the go tool embeds.
func Get() Info {
	info := Info{Version: Version, Commit: GitCommit, BuildDate: BuildDate}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.BuildDate == "unknown":
			info.BuildDate = s.Value
		}
	}
	return info
}
