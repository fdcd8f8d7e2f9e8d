// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds helpers shared by CUE-backed file loaders: size
// limits and error messages that point at the offending field.
package cueutil
