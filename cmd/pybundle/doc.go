// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pybundle command-line interface.
//
// It wires configuration loading, the progress sink and the shell runner
// into the build pipelines and maps pipeline failures to exit codes: 0 on
// success, 130 when interrupted and 1 for every other failure. Failures are
// printed with their phase label followed by the remediation text for that
// phase.
package cmd
