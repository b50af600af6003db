package catcommon

import (
	"github.com/Masterminds/semver/v3"
)

const (
	ServerVersion = "0.3.1"
	ApiVersion    = "0.1.0"
)

// IsApiVersionCompatible reports whether a client speaking version can talk
// to this server. Releases before 1.0 must match the minor version, later
// ones the major version.
func IsApiVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	op := "^"
	if semver.MustParse(ApiVersion).Major() == 0 {
		op = "~"
	}
	c, err := semver.NewConstraint(op + ApiVersion)
	if err != nil {
		return false
	}
	return c.Check(v)
}
