// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/invowk/pybundle/pkg/platform"
)

// ErrUnsupportedPlatform is wrapped by UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

type (
	// Target is an (operating system, architecture) pair in GOOS/GOARCH terms.
	Target struct {
		OS   string
		Arch string
	}

	// Table maps targets to remote artifact names. An entry with an empty
	// Arch matches every architecture of that OS.
	Table map[Target]string

	// Spec is the resolved remote artifact for a target.
	Spec struct {
		Target
		RemoteName string
	}

	// UnsupportedPlatformError reports a target missing from the table.
	UnsupportedPlatformError struct {
		Target    Target
		Supported []Target
	}
)

// DefaultTable follows the yt-dlp release naming. macOS ships a universal
// binary, so any architecture maps to the same file.
var DefaultTable = Table{
	{OS: platform.Darwin}:                        "yt-dlp_macos",
	{OS: platform.Linux, Arch: platform.AMD64}:   "yt-dlp_linux",
	{OS: platform.Linux, Arch: platform.ARM64}:   "yt-dlp_linux_aarch64",
	{OS: platform.Linux, Arch: platform.ARM}:     "yt-dlp_linux_armv7l",
	{OS: platform.Windows, Arch: platform.AMD64}: "yt-dlp.exe",
	{OS: platform.Windows, Arch: platform.I386}:  "yt-dlp_x86.exe",
	{OS: platform.Windows, Arch: platform.ARM64}: "yt-dlp_arm64.exe",
}

// String renders the target as "os/arch".
func (t Target) String() string {
	if t.Arch == "" {
		return t.OS + "/*"
	}
	return t.OS + "/" + t.Arch
}

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no pre-built binary for %s", e.Target)
}

// Unwrap returns ErrUnsupportedPlatform so callers can use errors.Is.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Resolve looks up t in the table. An exact (os, arch) entry wins over an
// OS-wide entry.
func (tbl Table) Resolve(t Target) (Spec, error) {
	if name, ok := tbl[t]; ok {
		return Spec{Target: t, RemoteName: name}, nil
	}
	if name, ok := tbl[Target{OS: t.OS}]; ok {
		return Spec{Target: t, RemoteName: name}, nil
	}
	return Spec{}, &UnsupportedPlatformError{Target: t, Supported: tbl.Targets()}
}

// Targets lists the table's keys in a stable order.
func (tbl Table) Targets() []Target {
	keys := slices.Collect(maps.Keys(tbl))
	slices.SortFunc(keys, func(a, b Target) int {
		if c := strings.Compare(a.OS, b.OS); c != 0 {
			return c
		}
		return strings.Compare(a.Arch, b.Arch)
	})
	return keys
}
