// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/internal/testutil/shelltest"
)

var min310 = Version{Major: 3, Minor: 10}

func TestResolve_FirstSatisfyingCandidateWins(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().
		On("py3.11 --version", shelltest.OK("Python 3.11.4\n")).
		On("py3.12 --version", shelltest.OK("Python 3.12.1\n"))

	got, err := NewResolver(runner, progress.Discard).Resolve(context.Background(), []string{"py3.11", "py3.12"}, min310)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.Command != "py3.11" || got.Version != (Version{3, 11, 4}) {
		t.Errorf("Resolve() = %+v, want the earlier candidate even though py3.12 is newer", got)
	}
	for _, line := range runner.Lines() {
		if strings.Contains(line, "py3.12") {
			t.Errorf("later candidates should not be probed, calls: %v", runner.Lines())
		}
	}
}

func TestResolve_SkipsUnusableCandidates(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().
		On("python3.12 --version", shelltest.Timeout()).
		On("python3.11 --version", shelltest.OK("not a version")).
		On("python3.10 --version", shelltest.OK("Python 3.9.1")).
		On("python3 --version", shelltest.Fail(1, "broken")).
		On("python --version", shelltest.OK("Python 3.10.2"))

	rec := &progress.Recorder{}
	candidates := []string{"missing", "python3.12", "python3.11", "python3.10", "python3", "python"}
	got, err := NewResolver(runner, rec).Resolve(context.Background(), candidates, min310)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.Command != "python" {
		t.Errorf("Command = %q, want python", got.Command)
	}
	if n := len(rec.Warnings()); n != 5 {
		t.Errorf("got %d warnings, want one per skipped candidate: %v", n, rec.Warnings())
	}
	if !slices.Equal(runner.Lines()[:2], []string{"missing --version", "python3.12 --version"}) {
		t.Errorf("probe order = %v", runner.Lines())
	}
}

func TestResolve_VersionOnStderr(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().On("--version", func(shell.Command) shell.Result {
		return shell.Result{Succeeded: true, Stderr: "Python 3.10.0\n"}
	})

	got, err := NewResolver(runner, progress.Discard).Resolve(context.Background(), []string{"python"}, min310)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.Version.Minor != 10 {
		t.Errorf("Version = %v", got.Version)
	}
}

func TestResolve_NoCompatibleInterpreter(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().On("--version", shelltest.OK("Python 3.8.10"))

	_, err := NewResolver(runner, progress.Discard).Resolve(context.Background(), []string{"python3", "python"}, min310)
	if !errors.Is(err, ErrNoCompatibleInterpreter) {
		t.Fatalf("err = %v, want ErrNoCompatibleInterpreter", err)
	}
	if id := issue.IdOf(err); id != issue.NoCompatibleInterpreterId {
		t.Errorf("IdOf() = %v, want NoCompatibleInterpreter", id)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || !slices.Contains(ae.Suggestions, "Install Python 3.10 or newer") {
		t.Errorf("missing install hint: %v", err)
	}
}

func TestResolve_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(shelltest.New(), progress.Discard).Resolve(ctx, []string{"python3"}, min310)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if issue.IdOf(err) != 0 {
		t.Error("cancellation must not be reported as a phase failure")
	}
}
