package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func restore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() { Version, GitCommit, BuildTime = v, c, b }
}

func TestFromBuild_Ldflags(t *testing.T) {
	defer restore()()
	Version, GitCommit, BuildTime = "1.2.0", "abcdef0123", "2026-01-15T10:30:00Z"

	info := fromBuild(nil, false)
	if info.Version != "1.2.0" || !info.IsRelease {
		t.Errorf("info = %+v", info)
	}
	if info.GitCommit != "abcdef0" {
		t.Errorf("commit = %q, want truncated to 7", info.GitCommit)
	}
	if info.BuildDate.Year() != 2026 {
		t.Errorf("build date = %v", info.BuildDate)
	}
	if got := info.String(); got != "1.2.0-abcdef0 (built 2026-01-15T10:30:00Z)" {
		t.Errorf("String() = %q", got)
	}
}

func TestFromBuild_VCSStamp(t *testing.T) {
	defer restore()()
	Version, GitCommit, BuildTime = "dev", "", ""

	bi := &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "vcs.time", Value: "2026-02-01T00:00:00Z"},
		},
	}
	info := fromBuild(bi, true)
	if info.IsRelease {
		t.Error("dev is not a release")
	}
	if got := info.Short(); got != "dev-0123456-dirty" {
		t.Errorf("Short() = %q", got)
	}
	if !info.BuildDate.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("build date = %v", info.BuildDate)
	}
	if info.GoVersion != "go1.26.0" {
		t.Errorf("go version = %q", info.GoVersion)
	}
}

func TestDirtyVersionIsNotRelease(t *testing.T) {
	defer restore()()
	Version = "1.0.0-dirty"
	if fromBuild(nil, false).IsRelease {
		t.Error("dirty version should not be a release")
	}
}
