package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Program is the binary name shown in version output.
const Program = "devdeck"

const fallbackModule = "pkt.systems/devdeck"

// buildVersion is set via -ldflags "-X pkt.systems/devdeck/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module    string
	Version   string
	Revision  string
	Time      time.Time
	Dirty     bool
	GoVersion string
	Platform  string
}

// Read collects Info for the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the version without a dirty marker. The /api/health
// endpoint reports this value.
func Current() string {
	return Read().Version
}

// String renders "devdeck <version> (<revision>, <go>, <os/arch>)", with the
// revision omitted when the build carries no VCS stamp.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(Program)
	b.WriteByte(' ')
	b.WriteString(i.Version)
	if i.Dirty {
		b.WriteString("+dirty")
	}
	details := make([]string, 0, 3)
	if i.Revision != "" {
		details = append(details, shortRevision(i.Revision))
	}
	if i.GoVersion != "" {
		details = append(details, i.GoVersion)
	}
	if i.Platform != "" {
		details = append(details, i.Platform)
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}
	return b.String()
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{
		Module:    fallbackModule,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		if info.GoVersion != "" {
			out.GoVersion = info.GoVersion
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if ts, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = ts.UTC()
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
	}

	switch v := strings.TrimSpace(override); {
	case v != "":
		out.Version = v
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = info.Main.Version
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = "v0.0.0-" + out.Time.Format("20060102150405") + "-" + shortRevision(out.Revision)
	default:
		out.Version = "v0.0.0-unknown"
	}
	if strings.HasSuffix(out.Version, "+dirty") {
		out.Version = strings.TrimSuffix(out.Version, "+dirty")
		out.Dirty = true
	}
	return out
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
