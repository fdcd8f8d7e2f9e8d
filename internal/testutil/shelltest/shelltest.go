// SPDX-License-Identifier: MPL-2.0

// Package shelltest provides a scripted shell.Runner for unit tests of
// components that orchestrate external commands.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/invowk/pybundle/internal/shell"
)

type (
	// Runner is a fake shell.Runner. Each call is matched against the rules in
	// registration order; the first rule whose substring occurs in the command
	// line answers it. Unmatched commands fail with FailureSpawn, mirroring a
	// program that does not exist.
	Runner struct {
		mu    sync.Mutex
		rules []*rule
		calls []shell.Command
	}

	// Responder computes a result for a matched command. It may have side
	// effects such as creating the files the real program would create.
	Responder func(cmd shell.Command) shell.Result

	rule struct {
		substr    string
		responses []Responder
		next      int
	}
)

// New creates an empty Runner.
func New() *Runner {
	return &Runner{}
}

// On registers responses for commands whose line contains substr. Responses
// are consumed in order; the last one repeats once the list is exhausted.
func (r *Runner) On(substr string, responses ...Responder) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule{substr: substr, responses: responses})
	return r
}

// Run implements shell.Runner.
func (r *Runner) Run(ctx context.Context, cmd shell.Command) shell.Result {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	var respond Responder
	for _, rl := range r.rules {
		if !strings.Contains(cmd.Line, rl.substr) || len(rl.responses) == 0 {
			continue
		}
		respond = rl.responses[min(rl.next, len(rl.responses)-1)]
		rl.next++
		break
	}
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return shell.Result{ExitCode: -1, Failure: shell.FailureCanceled, Cause: err}
	}
	if respond == nil {
		return shell.Result{ExitCode: 127, Failure: shell.FailureSpawn, Stderr: "command not found"}
	}
	return respond(cmd)
}

// Calls returns every command seen so far, in order.
func (r *Runner) Calls() []shell.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shell.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the command lines of every call.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Line
	}
	return out
}

// Count returns how many calls contained substr.
func (r *Runner) Count(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// OK responds with success and the given stdout.
func OK(stdout string) Responder {
	return func(shell.Command) shell.Result {
		return shell.Result{Succeeded: true, Stdout: stdout}
	}
}

// Fail responds with a non-zero exit and the given stderr.
func Fail(code int, stderr string) Responder {
	return func(shell.Command) shell.Result {
		return shell.Result{ExitCode: code, Failure: shell.FailureNonZeroExit, Stderr: stderr}
	}
}

// Timeout responds as if the command exceeded its deadline.
func Timeout() Responder {
	return func(shell.Command) shell.Result {
		return shell.Result{ExitCode: -1, Failure: shell.FailureTimeout}
	}
}

// Do runs fn for its side effects and then delegates to then.
func Do(fn func(cmd shell.Command), then Responder) Responder {
	return func(cmd shell.Command) shell.Result {
		fn(cmd)
		return then(cmd)
	}
}
