// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is wrapped by VersionParseError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a parsed interpreter version. Patch is informational only.
	Version struct {
		Major int
		Minor int
		Patch int
	}

	// VersionParseError reports output that contained no recognizable version.
	VersionParseError struct {
		Input string
	}
)

// Error implements the error interface.
func (e *VersionParseError) Error() string {
	return fmt.Sprintf("no version number found in %q", strings.TrimSpace(e.Input))
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is.
func (e *VersionParseError) Unwrap() error { return ErrInvalidVersion }

// String renders the version as MAJOR.MINOR.PATCH.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// semverString returns the canonical semver form, e.g. "v3.11.4".
func (v Version) semverString() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Satisfies reports whether v meets min: same major version and a minor
// version at least min's. Patch levels are not compared.
func (v Version) Satisfies(minimum Version) bool {
	have, want := v.semverString(), minimum.semverString()
	if semver.Major(have) != semver.Major(want) {
		return false
	}
	return semver.Compare(semver.MajorMinor(have), semver.MajorMinor(want)) >= 0
}

// ParseVersion extracts the first MAJOR.MINOR[.PATCH] token from the output
// of "<interpreter> --version", e.g. "Python 3.11.4". Pre-release and local
// suffixes such as "3.13.0rc1" or "3.8.10+" are accepted and dropped.
func ParseVersion(output string) (Version, error) {
	for _, field := range strings.Fields(output) {
		if v, ok := parseToken(field); ok {
			return v, nil
		}
	}
	return Version{}, &VersionParseError{Input: output}
}

// ParseMinVersion parses a configured minimum such as "3.10".
func ParseMinVersion(s string) (Version, error) {
	v, ok := parseToken(strings.TrimSpace(s))
	if !ok {
		return Version{}, &VersionParseError{Input: s}
	}
	return v, nil
}

func parseToken(tok string) (Version, bool) {
	tok = "v" + strings.TrimPrefix(tok, "v")

	// Split "v3.13.0rc1" into core "v3.13.0" and suffix "rc1".
	cut := len(tok)
	for i := 1; i < len(tok); i++ {
		if c := tok[i]; (c < '0' || c > '9') && c != '.' {
			cut = i
			break
		}
	}
	core := strings.TrimRight(tok[:cut], ".")
	suffix := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, tok[cut:])

	candidate := core
	if suffix != "" {
		candidate += "-" + suffix
	}
	// A bare major ("v3") is valid semver shorthand but not a version report.
	if strings.Count(core, ".") < 1 || !semver.IsValid(candidate) {
		return Version{}, false
	}

	canonical := strings.TrimSuffix(semver.Canonical(candidate), semver.Prerelease(candidate))
	parts := strings.Split(strings.TrimPrefix(canonical, "v"), ".")
	if len(parts) != 3 {
		return Version{}, false
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, false
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, true
}
