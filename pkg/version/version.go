// Package version holds the library version and NGSI API version helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Library is the version of this client library.
const Library = "0.4.0"

// Current is the NGSI API version spoken by this library.
const Current = "2.0"

// APIVersion represents a parsed "major.minor" API version.
type APIVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (APIVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return APIVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return APIVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return APIVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible reports whether other has the same major version.
func (v APIVersion) Compatible(other APIVersion) bool {
	return v.Major == other.Major
}

// PathPrefix returns the URL path prefix for a major version: "/vN".
func PathPrefix(major uint16) string {
	return fmt.Sprintf("/v%d", major)
}

// MajorFromPath extracts the major version from a request path such as
// "/v2/entities".
func MajorFromPath(path string) (uint16, error) {
	if !strings.HasPrefix(path, "/v") {
		return 0, fmt.Errorf("not a versioned NGSI path: %q", path)
	}
	seg := path[len("/v"):]
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return 0, fmt.Errorf("empty major version in path: %q", path)
	}
	major, err := strconv.ParseUint(seg, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in path %q: %w", path, err)
	}
	return uint16(major), nil
}

// CurrentPrefix returns the path prefix of the current API version.
func CurrentPrefix() string {
	current, _ := Parse(Current)
	return PathPrefix(current.Major)
}

// UserAgent returns the User-Agent sent to brokers.
func UserAgent() string {
	return "ngsi-go/" + Library
}
