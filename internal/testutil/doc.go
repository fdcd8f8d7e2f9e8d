// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// The helpers cover file fixtures (MustWriteFile, MustWriteExecutable,
// MustMkdirAll, Exists). The shelltest subpackage provides a scripted
// command runner.
package testutil
