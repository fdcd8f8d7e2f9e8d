// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes GOOS/GOARCH names and the small per-OS differences the build
// engine cares about: executable suffixes and whether POSIX permission bits apply.
package platform
