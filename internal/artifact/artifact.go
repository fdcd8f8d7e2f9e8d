// SPDX-License-Identifier: MPL-2.0

// Package artifact verifies the final output of a build pipeline.
package artifact

import (
	"errors"
	"fmt"
	"os"

	"github.com/invowk/pybundle/pkg/platform"
)

var (
	// ErrMissing means no file exists at the artifact path.
	ErrMissing = errors.New("artifact does not exist")
	// ErrNotRegular means the artifact path is a directory or special file.
	ErrNotRegular = errors.New("artifact is not a regular file")
	// ErrTooSmall means the artifact is smaller than the required minimum.
	ErrTooSmall = errors.New("artifact is too small")
)

type (
	// Artifact is a verified build output.
	Artifact struct {
		Path       string
		SizeBytes  int64
		Executable bool
	}

	// Check describes what Verify requires of a file.
	Check struct {
		// MinSize is the smallest acceptable size in bytes; values below one
		// are treated as one.
		MinSize int64
		// GOOS decides whether the POSIX executable bit applies.
		GOOS string
	}
)

// SizeMB returns the size in mebibytes for summaries.
func (a Artifact) SizeMB() float64 {
	return float64(a.SizeBytes) / (1 << 20)
}

// Verify checks that path is a regular file of at least the minimum size and,
// on POSIX hosts, sets mode 0755 when the owner executable bit is missing.
func Verify(path string, c Check) (Artifact, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%s: %w", path, ErrMissing)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	minSize := max(c.MinSize, 1)
	if info.Size() < minSize {
		return Artifact{}, fmt.Errorf("%s is %d bytes, need at least %d: %w", path, info.Size(), minSize, ErrTooSmall)
	}

	a := Artifact{Path: path, SizeBytes: info.Size(), Executable: true}
	if platform.IsPOSIX(c.GOOS) {
		if info.Mode().Perm()&0o100 == 0 {
			if err := os.Chmod(path, 0o755); err != nil {
				return Artifact{}, fmt.Errorf("marking %s executable: %w", path, err)
			}
		}
	}
	return a, nil
}
