package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata, set through -ldflags at release time
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	BuildDate       string `json:"build_date"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
	ProtocolVersion string `json:"protocol_version"`
}

// GetVersionInfo returns the build metadata. The commit falls back to the
// VCS revision embedded by the Go toolchain.
func GetVersionInfo() VersionInfo {
	commit := Commit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
				}
			}
		}
	}
	return VersionInfo{
		Version:         Version,
		Commit:          commit,
		BuildDate:       BuildDate,
		GoVersion:       runtime.Version(),
		Platform:        fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		ProtocolVersion: SupportedProtocolVersion,
	}
}
