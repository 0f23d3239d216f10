// Package appversion reports the stockton build version.
package appversion

import "runtime/debug"

// version is set at build time via -ldflags "-X stockton/internal/appversion.version=v1.2.3".
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the ldflags version, else the module version recorded by
// `go install`, else "dev".
func String() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return version
}
