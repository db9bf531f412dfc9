// Package version reports the moji build version.
package version

import (
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/fmueller/moji/internal/version.Version=...".
var (
	Version string
	Commit  string
)

const develVersion = "(devel)"

// Resolve returns the release version when one was stamped at link time or
// recorded by `go install module@version`. Otherwise it returns 0.0.0-dev
// with the VCS revision embedded by the Go toolchain, if any.
func Resolve() string {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, Commit, info)
}

func resolve(stamped, commit string, info *debug.BuildInfo) string {
	if v := strings.TrimPrefix(strings.TrimSpace(stamped), "v"); v != "" {
		return v
	}

	if info != nil {
		if v := strings.TrimPrefix(info.Main.Version, "v"); v != "" && v != develVersion {
			return v
		}
	}

	revision, dirty := strings.TrimSpace(commit), false
	if info != nil {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if revision == "" {
					revision = setting.Value
				}
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	out := "0.0.0-dev"
	if revision != "" {
		out += "+" + shortRevision(revision)
	}
	if dirty {
		out += ".dirty"
	}
	return out
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}
