// Package version implements three-component dataset versions.
//
// A dataset version identifies one immutable on-disk layout. Versions
// have a total order so the layout resolver can detect stale or
// conflicting data directories.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a string cannot be parsed as a version.
var ErrInvalid = errors.New("invalid version")

// Version is a semantic dataset version (major.minor.patch).
//
// The zero Version is not a valid declared version; builders must
// declare a version before touching their data directory.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Parse parses "major.minor.patch" into a Version.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is like Parse but panics on malformed input.
// Intended for version literals in builder declarations.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical "major.minor.patch" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 depending on whether v is older than,
// equal to, or newer than o.
func (v Version) Compare(o Version) int {
	pairs := [3][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// Equal reports whether two versions are identical.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// IsZero reports whether the version was never declared.
func (v Version) IsZero() bool { return v == Version{} }
