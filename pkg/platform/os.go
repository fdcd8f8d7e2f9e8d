// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Architecture constants for runtime.GOARCH comparisons.
const (
	AMD64 = "amd64"
	ARM64 = "arm64"
	ARM   = "arm"
	I386  = "386"
)

// IsWindows reports whether goos names the Windows family.
func IsWindows(goos string) bool { return goos == Windows }

// IsPOSIX reports whether goos uses POSIX permission bits and symlinks.
func IsPOSIX(goos string) bool { return !IsWindows(goos) }

// ExeSuffix returns the executable file suffix for goos.
func ExeSuffix(goos string) string {
	if IsWindows(goos) {
		return ".exe"
	}
	return ""
}
