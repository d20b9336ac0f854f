// Package version reports how the motiondeck binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty"`
	Release   bool      `json:"release"`
}

// Set at build time with -ldflags "-X github.com/conneroisu/motiondeck/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// readSetting is swapped in tests.
var readSetting = func(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// GetBuildInfo returns the build information of the running binary.
func GetBuildInfo() *BuildInfo {
	v := GetVersion()
	return &BuildInfo{
		Version:   v,
		GitCommit: GetGitCommit(),
		BuildTime: GetBuildTime(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     IsDirty(),
		Release:   isRelease(v),
	}
}

// GetVersion returns the ldflags version, falling back to dev-<short commit>
// from the VCS stamp.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if rev, ok := readSetting("vcs.revision"); ok && len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

// GetGitCommit returns the full commit hash, or "unknown".
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if rev, ok := readSetting("vcs.revision"); ok && rev != "" {
		return rev
	}
	return "unknown"
}

// GetBuildTime returns the build time, or the zero time when unknown.
func GetBuildTime() time.Time {
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		return t
	}
	if stamp, ok := readSetting("vcs.time"); ok {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetShortVersion returns "v1.2.3 (abcdef0)" for releases and the bare
// version otherwise.
func GetShortVersion() string {
	v := GetVersion()
	commit := GetGitCommit()
	if isRelease(v) && len(commit) >= 7 {
		return fmt.Sprintf("%s (%s)", v, commit[:7])
	}
	return v
}

// IsDirty reports whether the working tree had local changes at build time.
func IsDirty() bool {
	modified, _ := readSetting("vcs.modified")
	return modified == "true"
}

func isRelease(v string) bool {
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}
