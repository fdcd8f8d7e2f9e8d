// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads pre-built platform binaries from a release host.
//
// A fixed Table maps (GOOS, GOARCH) targets to remote asset names. Fetching a
// target streams the asset from "<release>/releases/latest/download/<name>"
// into the output directory, optionally checks it against the release's
// SHA-256 checksum file, and finally runs it with "--version" to prove it works.
package fetch
