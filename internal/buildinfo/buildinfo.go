// Package buildinfo reports the binary version.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// version is set with -ldflags "-X .../buildinfo.version=v1.2.3".
var version = "dev"

// Version returns the release tag, the module version, or "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return "dev-" + strings.ToLower(s.Value[:7])
		}
	}
	return version
}
