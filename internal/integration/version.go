package integration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a MAJOR.MINOR.PATCH version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ProtocolVersion is the fragment-server wire protocol spoken by this build.
// Servers and clients interoperate while the major versions agree.
var ProtocolVersion = Version{Major: 1, Minor: 0, Patch: 0}

var versionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:[^\d.].*)?$`)

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v Version) Compare(other Version) int {
	for _, d := range [3]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// CompatibleWith reports whether two protocol versions can talk.
func (v Version) CompatibleWith(other Version) bool {
	return v.Major == other.Major
}

// ParseVersion accepts "1.2.3", "v1.2.3" and suffixed forms like
// "1.2.3-beta"; "1.2.3.4" is rejected.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version string %q: expected format v?MAJOR.MINOR.PATCH", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}
