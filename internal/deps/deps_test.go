// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/retry"
	"github.com/invowk/pybundle/internal/testutil/shelltest"
	"github.com/invowk/pybundle/internal/venv"
)

var testEnv = venv.Environment{
	Root:        "/work/env",
	BinDir:      "/work/env/bin",
	Interpreter: "/work/env/bin/python3",
	Installer:   "/work/env/bin/pip3",
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Delay:       5 * time.Second,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func TestInstall_CriticalRetriedThenFails(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().On("install spotdl", shelltest.Fail(1, "Could not fetch URL"))
	inst := NewInstaller(runner, progress.Discard, WithPolicy(fastPolicy(3)))

	rep, err := inst.Install(context.Background(), testEnv, []Package{{Name: "spotdl", Critical: true}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := runner.Count("install spotdl"); got != 3 {
		t.Errorf("install attempts = %d, want exactly 3", got)
	}
	if issue.IdOf(err) != issue.DependencyInstallFailedId {
		t.Errorf("IdOf() = %v, want DependencyInstallFailed", issue.IdOf(err))
	}
	if !errors.Is(err, retry.ErrExhausted) {
		t.Errorf("err should wrap retry.ErrExhausted: %v", err)
	}
	if len(rep.Installed) != 0 {
		t.Errorf("Installed = %v, want none", rep.Installed)
	}
}

func TestInstall_CriticalSucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().On("install spotdl", shelltest.Fail(1, "flaky"), shelltest.OK(""))
	inst := NewInstaller(runner, progress.Discard, WithPolicy(fastPolicy(3)))

	rep, err := inst.Install(context.Background(), testEnv, []Package{{Name: "spotdl", Critical: true}})
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if runner.Count("install spotdl") != 2 {
		t.Errorf("attempts = %d, want 2", runner.Count("install spotdl"))
	}
	if !slices.Equal(rep.Installed, []string{"spotdl"}) {
		t.Errorf("Installed = %v", rep.Installed)
	}
}

func TestInstall_NonCriticalDegrades(t *testing.T) {
	t.Parallel()

	runner := shelltest.New().
		On("install spotdl", shelltest.OK("")).
		On("install yt-dlp", shelltest.Fail(1, "no wheel"))
	rec := &progress.Recorder{}
	inst := NewInstaller(runner, rec, WithPolicy(fastPolicy(3)))

	rep, err := inst.Install(context.Background(), testEnv, []Package{
		{Name: "spotdl", Critical: true},
		{Name: "yt-dlp"},
	})
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if got := runner.Count("install yt-dlp"); got != 1 {
		t.Errorf("non-critical attempts = %d, want exactly 1", got)
	}
	if !slices.Equal(rep.Degraded, []string{"yt-dlp"}) || !slices.Equal(rep.Installed, []string{"spotdl"}) {
		t.Errorf("report = %+v", rep)
	}
	if len(rec.Warnings()) != 1 {
		t.Errorf("warnings = %v, want one", rec.Warnings())
	}
}

func TestInstall_UsesModuleFallbackWithoutInstaller(t *testing.T) {
	t.Parallel()

	env := testEnv
	env.Installer = ""
	runner := shelltest.New().On("python3 -m pip install pyinstaller", shelltest.OK(""))

	if _, err := NewInstaller(runner, progress.Discard).Install(context.Background(), env, []Package{{Name: "pyinstaller", Critical: true}}); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
}

func TestInstall_CanceledStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := shelltest.New().On("install", shelltest.OK(""))
	_, err := NewInstaller(runner, progress.Discard, WithPolicy(fastPolicy(3))).
		Install(ctx, testEnv, []Package{{Name: "spotdl", Critical: true}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if issue.IdOf(err) != 0 {
		t.Error("cancellation must not be reported as DependencyInstallFailed")
	}
	if runner.Count("install") != 1 {
		t.Errorf("attempts = %d, want 1", runner.Count("install"))
	}
}

func TestUpgradeInstaller(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		runner       *shelltest.Runner
		wantCalls    int
		wantWarnings int
	}{
		{
			name:      "pip executable works",
			runner:    shelltest.New().On("pip3 install --upgrade pip", shelltest.OK("")),
			wantCalls: 1,
		},
		{
			name: "falls back to python -m pip",
			runner: shelltest.New().
				On("pip3 install --upgrade pip", shelltest.Fail(1, "")).
				On("python3 -m pip install --upgrade pip", shelltest.OK("")),
			wantCalls: 2,
		},
		{
			name:         "both fail is only a warning",
			runner:       shelltest.New().On("--upgrade pip", shelltest.Fail(1, "")),
			wantCalls:    2,
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &progress.Recorder{}
			if err := NewInstaller(tt.runner, rec).UpgradeInstaller(context.Background(), testEnv); err != nil {
				t.Fatalf("UpgradeInstaller() error: %v", err)
			}
			if got := len(tt.runner.Calls()); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d: %v", got, tt.wantCalls, tt.runner.Lines())
			}
			if got := len(rec.Warnings()); got != tt.wantWarnings {
				t.Errorf("warnings = %v", rec.Warnings())
			}
		})
	}
}
