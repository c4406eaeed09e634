// Package version reports what build of eventsink is running
package version

import (
	"runtime/debug"
	"sync"
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X eventsink/internal/core/version.version=v1.2.0 ..."
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var (
	once sync.Once
	info BuildInfo
)

// Info returns the ldflags values, falling back to the vcs stamp the Go
// toolchain embeds when they were not set
func Info() BuildInfo {
	once.Do(func() {
		info = resolve(version, commit, date, debug.ReadBuildInfo)
	})
	return info
}

func resolve(v, c, d string, read func() (*debug.BuildInfo, bool)) BuildInfo {
	out := BuildInfo{Service: "eventsink", Version: v, Commit: c, Date: d}
	if out.Commit != "" && out.Date != "" {
		return out
	}
	bi, ok := read()
	if !ok {
		return fill(out)
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.Date == "" {
				out.Date = s.Value
			}
		}
	}
	if out.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		out.Version = bi.Main.Version
	}
	return fill(out)
}

func fill(b BuildInfo) BuildInfo {
	if b.Commit == "" {
		b.Commit = "none"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}
