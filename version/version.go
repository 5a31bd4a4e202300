package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

// Get returns the build information, filling whatever ldflags left unset
// from the module's VCS stamp.
func Get() Info {
	return fromBuild(debug.ReadBuildInfo())
}

func fromBuild(bi *debug.BuildInfo, ok bool) Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		IsRelease: Version != "dev" && !strings.Contains(Version, "dirty"),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	if ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.modified":
				info.IsDirty = s.Value == "true"
			case "vcs.time":
				if info.BuildDate.IsZero() {
					if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
						info.BuildDate = t
					}
				}
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// Short is the version with the commit appended, e.g. "1.2.0-abc1234".
func (i Info) Short() string {
	v := i.Version
	if i.GitCommit != "" {
		v += "-" + i.GitCommit
	}
	if i.IsDirty {
		v += "-dirty"
	}
	return v
}

// String is Short plus the Go version and build date when known.
func (i Info) String() string {
	s := i.Short()
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	if !i.BuildDate.IsZero() {
		s += fmt.Sprintf(" (built %s)", i.BuildDate.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return s
}
