// Package versions reports build information for the hospital robot server and CLI.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/Masterminds/semver/v3"
)

const unknownStr = "unknown"

// Version information set by build using -ldflags
var (
	// Version is the released version, e.g. v1.2.0
	Version = "dev"
	// Commit is the git commit hash of the build
	Commit = unknownStr
	// BuildDate is the date when the binary was built
	BuildDate = unknownStr
)

// VersionInfo represents the version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	return versionInfo(Version, Commit, BuildDate, readVCS())
}

// readVCS returns the revision and time embedded by the go toolchain, if any
func readVCS() map[string]string {
	settings := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

func versionInfo(version, commit, buildDate string, vcs map[string]string) VersionInfo {
	if version == "dev" {
		if commit == unknownStr && vcs["vcs.revision"] != "" {
			commit = vcs["vcs.revision"]
		}
		if buildDate == unknownStr && vcs["vcs.time"] != "" {
			buildDate = vcs["vcs.time"]
		}
		version = fmt.Sprintf("build-%.8s", commit)
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.Format("2006-01-02 15:04:05 MST")
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// IsNewer reports whether candidate is a strictly greater semantic version
// than current. Development builds are never considered newer or older.
func IsNewer(candidate, current string) bool {
	c, err := semver.NewVersion(candidate)
	if err != nil {
		return false
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return c.GreaterThan(cur)
}
