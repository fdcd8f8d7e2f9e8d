// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is read from the first of: the file given with --config,
// <XDG config home>/pybundle/config.cue, and pybundle.cue in the work
// directory. Files are validated against an embedded CUE schema
// (config_schema.cue) before being merged over the built-in defaults.
// Environment variables prefixed with PYBUNDLE_ override both, e.g.
// PYBUNDLE_INTERPRETER_MIN_VERSION=3.11.
package config
