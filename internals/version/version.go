package version

import "strings"

// SemVer is set at build time for releases:
//
//	-ldflags "-X github.com/Oudwins/shellrunner/internals/version.SemVer=1.2.3"
var SemVer = "0.0.0-dev"

// Version returns SemVer with the build identity appended as metadata, e.g.
// 1.2.3+a1b2c3d4e5f6.9f2c1a0b77de.
func Version() string {
	v := strings.TrimSpace(SemVer)
	if v == "" {
		v = "0.0.0-dev"
	}
	meta := Identity()
	if meta == "" {
		return v
	}
	if strings.Contains(v, "+") {
		return v + "." + meta
	}
	return v + "+" + meta
}
