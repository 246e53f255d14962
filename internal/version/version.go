package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/simonswine/jsonnet-exporter/internal/version.Version=...".
var (
	Version  = "dev"
	Revision = ""
)

func String() string {
	rev := Revision
	if rev == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					rev = s.Value
				}
			}
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		rev = "unknown"
	}
	return fmt.Sprintf("jsonnet-exporter %s (revision %s, %s)", Version, rev, runtime.Version())
}
