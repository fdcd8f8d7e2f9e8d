// SPDX-License-Identifier: MPL-2.0

// Package progress carries structured progress events from the build engine to
// whatever renders them. Components never write to stdout or stderr directly;
// they emit Events through a Sink. The CLI installs a charmbracelet/log backed
// sink and tests install a Recorder.
package progress
