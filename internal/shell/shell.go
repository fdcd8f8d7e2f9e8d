// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invowk/pybundle/internal/progress"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultTimeout applies when a Command does not set its own.
const DefaultTimeout = 5 * time.Minute

// Failure kinds. FailureNone accompanies every successful Result.
const (
	FailureNone FailureKind = iota
	FailureSpawn
	FailureTimeout
	FailureNonZeroExit
	FailureCanceled
)

type (
	// FailureKind classifies why a command did not succeed.
	FailureKind int

	// Command is a single shell command line to execute.
	Command struct {
		// Line is parsed with POSIX shell rules, so quoting works the same on
		// every host OS. Build it with Join when arguments come from variables.
		Line string
		// Dir is the working directory; empty means the runner's directory.
		Dir string
		// Timeout bounds the run; zero means DefaultTimeout.
		Timeout time.Duration
		// Description is logged before the command runs.
		Description string
		// Env holds extra KEY=VALUE pairs on top of the inherited environment.
		Env []string
	}

	// Result is the immutable outcome of one command invocation.
	Result struct {
		Succeeded bool
		Stdout    string
		Stderr    string
		// ExitCode is -1 when the process never produced an exit status.
		ExitCode int
		Failure  FailureKind
		Duration time.Duration
		// Cause holds the low-level error for spawn failures.
		Cause error
	}

	// Runner executes commands. Failures are reported in the Result, never
	// as a separate error value.
	Runner interface {
		Run(ctx context.Context, cmd Command) Result
	}

	// CommandError describes a failed command for inclusion in an error chain.
	CommandError struct {
		Line   string
		Result Result
	}

	// ShellRunner runs commands through the mvdan.cc/sh interpreter with the
	// process environment inherited.
	ShellRunner struct {
		report  progress.Reporter
		dir     string
		environ func() []string
	}

	// RunnerOption configures a ShellRunner.
	RunnerOption func(*ShellRunner)
)

// String returns the kind's name as used in logs and error messages.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureSpawn:
		return "spawn-failed"
	case FailureTimeout:
		return "timed-out"
	case FailureNonZeroExit:
		return "non-zero-exit"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "command %q failed (%s", e.Line, e.Result.Failure)
	if e.Result.ExitCode >= 0 {
		fmt.Fprintf(&msg, ", exit status %d", e.Result.ExitCode)
	}
	msg.WriteString(")")
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg.WriteString(": ")
		msg.WriteString(lastLine(stderr))
	}
	return msg.String()
}

// Unwrap exposes the spawn cause, or context.Canceled for interrupted runs.
func (e *CommandError) Unwrap() error {
	if e.Result.Failure == FailureCanceled {
		return context.Canceled
	}
	return e.Result.Cause
}

// Err converts a failed Result into a *CommandError; it returns nil on success.
func (r Result) Err(line string) error {
	if r.Succeeded {
		return nil
	}
	return &CommandError{Line: line, Result: r}
}

// Combined returns stdout followed by stderr, trimmed.
func (r Result) Combined() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// WithDir sets the default working directory for commands without one.
func WithDir(dir string) RunnerOption {
	return func(r *ShellRunner) { r.dir = dir }
}

// WithEnviron overrides the inherited environment source (tests).
func WithEnviron(fn func() []string) RunnerOption {
	return func(r *ShellRunner) { r.environ = fn }
}

// NewRunner creates a ShellRunner that reports through sink.
func NewRunner(sink progress.Sink, opts ...RunnerOption) *ShellRunner {
	r := &ShellRunner{
		report:  progress.For(sink, "shell"),
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, cmd Command) Result {
	desc := cmd.Description
	if desc == "" {
		desc = "running command"
	}
	r.report.Info(desc, "cmd", cmd.Line)

	res := r.run(ctx, cmd)
	if !res.Succeeded {
		kv := []any{"cmd", cmd.Line, "kind", res.Failure}
		if res.ExitCode >= 0 {
			kv = append(kv, "exit", res.ExitCode)
		}
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			kv = append(kv, "stderr", stderr)
		}
		r.report.Error("command failed", kv...)
	}
	return res
}

func (r *ShellRunner) run(parent context.Context, cmd Command) Result {
	start := time.Now()

	if strings.TrimSpace(cmd.Line) == "" {
		return Result{ExitCode: -1, Failure: FailureSpawn, Cause: errors.New("empty command line")}
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Line), "")
	if err != nil {
		return Result{ExitCode: -1, Failure: FailureSpawn, Cause: fmt.Errorf("parsing command line: %w", err)}
	}

	dir := cmd.Dir
	if dir == "" {
		dir = r.dir
	}

	var (
		stdout, stderr bytes.Buffer
		spawnErr       error
	)

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(append(r.environ(), cmd.Env...)...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(lookupRecorder(&spawnErr)),
	}
	if dir != "" {
		opts = append(opts, interp.Dir(dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return Result{ExitCode: -1, Failure: FailureSpawn, Cause: fmt.Errorf("creating interpreter: %w", err)}
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	runErr := runner.Run(ctx, prog)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: time.Since(start),
	}

	var exitStatus interp.ExitStatus
	// The interpreter may stop quietly on a done context, so context state is
	// checked before the run error.
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		res.Failure = FailureCanceled
		res.ExitCode = -1
		res.Cause = parent.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Failure = FailureTimeout
		res.ExitCode = -1
		res.Cause = fmt.Errorf("timed out after %s: %w", timeout, ctx.Err())
	case runErr == nil:
		res.Succeeded = true
	case spawnErr != nil:
		res.Failure = FailureSpawn
		res.ExitCode = exitCodeOf(runErr)
		res.Cause = spawnErr
	case errors.As(runErr, &exitStatus):
		res.Failure = FailureNonZeroExit
		res.ExitCode = int(exitStatus)
	default:
		res.Failure = FailureSpawn
		res.ExitCode = -1
		res.Cause = runErr
	}
	return res
}

// lookupRecorder returns exec middleware that records the first program the
// interpreter could not resolve to an executable file before delegating to
// the default handler.
func lookupRecorder(spawnErr *error) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			hc := interp.HandlerCtx(ctx)
			if _, err := interp.LookPathDir(hc.Dir, hc.Env, args[0]); err != nil && *spawnErr == nil {
				*spawnErr = fmt.Errorf("starting %s: %w", args[0], err)
			}
			return next(ctx, args)
		}
	}
}

func exitCodeOf(err error) int {
	var exitStatus interp.ExitStatus
	if errors.As(err, &exitStatus) {
		return int(exitStatus)
	}
	return -1
}

// Join quotes each argument for the POSIX shell grammar and joins them with
// spaces, producing a Command.Line that survives paths with spaces.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

// Quote quotes a single word. Words that need no quoting are returned as is.
func Quote(word string) string {
	q, err := syntax.Quote(word, syntax.LangBash)
	if err != nil {
		// Only NUL bytes are unquotable; they cannot reach a process anyway.
		return strconv.Quote(strings.ReplaceAll(word, "\x00", ""))
	}
	return q
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
