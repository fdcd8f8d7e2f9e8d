// SPDX-License-Identifier: MPL-2.0

// Package shell is the single point through which the build engine runs
// external programs. Command lines are parsed and executed by the mvdan.cc/sh
// interpreter, so quoting and simple shell syntax behave identically on
// Linux, macOS and Windows hosts.
//
// A Runner never panics and never returns a Go error: every outcome, including
// "the program could not be started" and "the command timed out", is captured
// in the returned Result. Retrying is the caller's business.
package shell
