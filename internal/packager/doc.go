// SPDX-License-Identifier: MPL-2.0

// Package packager drives the external bundling tool (PyInstaller by default)
// to produce a single-file executable from a provisioned environment.
//
// The tool is treated as an opaque command. This package only composes its
// arguments from a declarative Config, supplies a generated entry script, and
// verifies that the expected artifact exists afterwards.
package packager
