// SPDX-License-Identifier: MPL-2.0

// Package venv provisions isolated Python environments.
//
// Creation tries, in order, the standard library venv module in copies mode,
// the virtualenv module, and a system-wide virtualenv executable. Before any
// attempt the target directory and configured stale build outputs are removed,
// so every run starts from a clean slate.
package venv
