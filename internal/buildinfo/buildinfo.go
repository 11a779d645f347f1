// Package buildinfo reports the running binary's version and VCS state,
// a direct generalization of the teacher's src/version.go printVersion.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Version is set at build time via
// -ldflags "-X 'github.com/doismellburning/huskyhud/internal/buildinfo.Version=X'"
var Version string

func settingOrDefault(bi *debug.BuildInfo, key, defaultValue string) string {
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// String returns a one-line version summary: version, revision, and
// whether the working tree was dirty at build time.
func String() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("huskyhud - version %s (no build info available)", versionOrUnknown())
	}

	commit := settingOrDefault(buildInfo, "vcs.revision", "UNKNOWN")
	dirtyStr := settingOrDefault(buildInfo, "vcs.modified", "false")

	if dirty, err := strconv.ParseBool(dirtyStr); err == nil && dirty {
		commit += "-dirty"
	}

	buildTime := settingOrDefault(buildInfo, "vcs.time", "UNKNOWN")

	return fmt.Sprintf("huskyhud - version %s (revision %s, built at %s)", versionOrUnknown(), commit, buildTime)
}

func versionOrUnknown() string {
	if Version == "" {
		return "!UNKNOWN!"
	}

	return Version
}
