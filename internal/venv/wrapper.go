// SPDX-License-Identifier: MPL-2.0

package venv

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteWrapper persists a launcher script inside the environment root and
// marks it executable. The returned path is absolute when Root is.
func WriteWrapper(env Environment, name string, content []byte) (string, error) {
	path := filepath.Join(env.Root, name)
	if err := os.WriteFile(path, content, 0o755); err != nil {
		return "", fmt.Errorf("writing wrapper script: %w", err)
	}
	// WriteFile honors the umask; the launcher must be executable regardless.
	if err := os.Chmod(path, 0o755); err != nil {
		return "", fmt.Errorf("marking wrapper script executable: %w", err)
	}
	return path, nil
}
