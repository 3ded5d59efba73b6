// Package release derives OIDN release artifacts from a version and platform.
//
// A Coordinate is the (major, minor, patch) triple read from the rez build
// environment. Combined with a platform.Descriptor and an archive format it
// yields an Artifact: the archive filename, the download URL and the name of
// the directory the archive unpacks to.
package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blang/semver"
)

// EnvProjectVersion is the variable rez sets to the package version.
const EnvProjectVersion = "REZ_BUILD_PROJECT_VERSION"

// ErrInvalidVersion is returned for versions that are not a plain
// MAJOR.MINOR.PATCH triple.
var ErrInvalidVersion = errors.New("invalid release version")

// Coordinate identifies an upstream release.
type Coordinate struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// String returns "MAJOR.MINOR.PATCH".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d.%d.%d", c.Major, c.Minor, c.Patch)
}

// Tag returns the upstream git tag for the release, e.g. "v2.3.1".
func (c Coordinate) Tag() string {
	return "v" + c.String()
}

// ParseCoordinate parses a "MAJOR.MINOR.PATCH" string. An empty string yields
// the zero Coordinate (0.0.0). Pre-release and build metadata are rejected
// because upstream release tags never carry them.
func ParseCoordinate(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coordinate{}, nil
	}

	v, err := semver.Parse(s)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
	}
	if len(v.Pre) > 0 || len(v.Build) > 0 {
		return Coordinate{}, fmt.Errorf("%w %q: pre-release and build metadata are not supported", ErrInvalidVersion, s)
	}

	return Coordinate{Major: v.Major, Minor: v.Minor, Patch: v.Patch}, nil
}

// MustParseCoordinate is like ParseCoordinate but panics on error.
// It is intended for constants and tests.
func MustParseCoordinate(s string) Coordinate {
	c, err := ParseCoordinate(s)
	if err != nil {
		panic(err)
	}
	return c
}
