// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Every unrecoverable build failure belongs to exactly one phase (an Id). The
// ActionableError type carries that phase together with the operation, the
// resource involved and remediation suggestions. Each phase also has a
// Markdown remediation entry that the CLI renders with glamour.
package issue
