// SPDX-License-Identifier: MPL-2.0

// Package interpreter selects the Python interpreter used for a build by
// probing an ordered list of candidate commands with "--version".
package interpreter
