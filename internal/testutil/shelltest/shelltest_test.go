// SPDX-License-Identifier: MPL-2.0

package shelltest

import (
	"context"
	"testing"

	"github.com/invowk/pybundle/internal/shell"
)

func TestRunnerSequencesResponses(t *testing.T) {
	t.Parallel()

	r := New().
		On("pip install spotdl", Fail(1, "net"), OK("done")).
		On("--version", OK("Python 3.11.4"))

	ctx := context.Background()
	first := r.Run(ctx, shell.Command{Line: "pip install spotdl"})
	second := r.Run(ctx, shell.Command{Line: "pip install spotdl"})
	third := r.Run(ctx, shell.Command{Line: "pip install spotdl"})
	if first.Succeeded || !second.Succeeded || !third.Succeeded {
		t.Errorf("sequence = %v %v %v, want fail ok ok", first.Succeeded, second.Succeeded, third.Succeeded)
	}

	if res := r.Run(ctx, shell.Command{Line: "unknown"}); res.Failure != shell.FailureSpawn {
		t.Errorf("unmatched Failure = %v, want spawn", res.Failure)
	}
	if got := r.Count("pip install"); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	if got := len(r.Calls()); got != 4 {
		t.Errorf("len(Calls()) = %d, want 4", got)
	}
}

func TestRunnerHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New().On("x", OK("")).Run(ctx, shell.Command{Line: "x"})
	if res.Failure != shell.FailureCanceled {
		t.Errorf("Failure = %v, want canceled", res.Failure)
	}
}
