// Package version reports the lanprobe build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/lanprobe/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/lanprobe/internal/version.Commit=abc1234"
//
// Unset values are filled from the module build info.
var (
	Version = ""
	Commit  = ""
)

// Info is the resolved build identity.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
}

func init() {
	info := resolve(Version, Commit, readBuildInfo())
	Version = info.Version
	Commit = info.Commit
	if info.Dirty {
		Commit += "-dirty"
	}
}

func readBuildInfo() *debug.BuildInfo {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return bi
}

// resolve prefers ldflags values, then `go install module@version`
// metadata, then VCS stamps.
func resolve(version, commit string, bi *debug.BuildInfo) Info {
	info := Info{Version: version, Commit: commit, GoVersion: runtime.Version()}
	if bi == nil {
		return fallback(info)
	}

	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortHash(s.Value)
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true" && commit == ""
		case "vcs.time":
			if info.Version == "" && len(s.Value) >= len("2006-01-02") {
				info.Version = "dev-" + strings.ReplaceAll(s.Value[:10], "-", "")
			}
		}
	}
	return fallback(info)
}

func fallback(info Info) Info {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

func shortHash(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Banner returns the line printed by the version command.
func Banner(binary string) string {
	return fmt.Sprintf("%s %s %s/%s %s", binary, Full(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}
