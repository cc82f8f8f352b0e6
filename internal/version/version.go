// Package version reports build information for the TigerScale binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/tigerscale/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/tigerscale/internal/version.Commit=abc1234"
//
// When left empty they are filled from the VCS stamp in the binary.
var (
	Version = ""
	Commit  = ""
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version   string
	Commit    string
	BuiltAt   time.Time
	GoVersion string
	Modified  bool
}

func init() {
	info := fromBuildInfo()
	if Version == "" {
		Version = info.Version
	}
	if Commit == "" {
		Commit = info.Commit
	}
}

// Get returns the resolved build metadata.
func Get() Info {
	info := fromBuildInfo()
	info.Version = Version
	info.Commit = Commit
	return info
}

func fromBuildInfo() Info {
	info := Info{
		Version:   "dev",
		Commit:    "unknown",
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = shortRevision(setting.Value)
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.BuiltAt = t
			}
		}
	}

	if info.Modified && info.Commit != "unknown" {
		info.Commit += "-dirty"
	}
	if info.Version == "dev" && !info.BuiltAt.IsZero() {
		info.Version = "dev-" + info.BuiltAt.Format("20060102")
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Banner returns the one-line version output of a binary.
func Banner(binary string) string {
	i := Get()
	return fmt.Sprintf("%s %s (commit: %s, %s)", binary, i.Version, i.Commit, i.GoVersion)
}
