package plugin

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// versionPattern admits exactly three non-negative integer components.
// Pre-release and build metadata are rejected at validation time, so the
// comparator only ever sees plain triples.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ParseVersion parses a semantic version triple.
func ParseVersion(s string) (*semver.Version, error) {
	if !versionPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: version %q does not match MAJOR.MINOR.PATCH", ErrValidation, s)
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrValidation, s, err)
	}
	return v, nil
}

// CompareVersions returns -1, 0, or 1 comparing two triples numerically,
// so "1.9.0" sorts before "1.10.0".
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Satisfies reports whether have meets the "at least" requirement want.
func Satisfies(have, want string) (bool, error) {
	cmp, err := CompareVersions(have, want)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}
