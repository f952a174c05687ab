// Package version reports the codegate release embedded at build time.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the release from the VERSION file. A build from a
// modified checkout gets a "+dirty" suffix when the toolchain recorded it.
func Get() string {
	v := strings.TrimSpace(versionContent)
	if v == "" {
		v = "dev"
	}
	if dirty() {
		v += "+dirty"
	}
	return v
}

func dirty() bool {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return false
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.modified" {
			return s.Value == "true"
		}
	}
	return false
}
