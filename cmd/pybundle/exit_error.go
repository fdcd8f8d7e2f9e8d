// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/pybundle/internal/app/pipeline"
	"github.com/invowk/pybundle/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeOf returns the process status for an error returned by the
// command tree.
func exitCodeOf(err error) types.ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return pipeline.ExitCodeFor(err)
}

// pipelineExit wraps a pipeline failure with its exit code.
func pipelineExit(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: pipeline.ExitCodeFor(err), Err: err}
}
