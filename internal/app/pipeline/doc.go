// SPDX-License-Identifier: MPL-2.0

// Package pipeline composes the build components into the three user-facing
// runs: packaging an application into a single executable, provisioning a
// reusable environment with a launcher, and fetching a pre-built binary.
//
// Every run is sequential and fails fast on the first unrecoverable phase.
// ExitCodeFor and PhaseOf translate the returned error for the CLI.
package pipeline
