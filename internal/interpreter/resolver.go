// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
)

// DefaultProbeTimeout bounds each "--version" probe.
const DefaultProbeTimeout = 5 * time.Second

// ErrNoCompatibleInterpreter is the cause of the actionable error returned
// when no candidate qualifies.
var ErrNoCompatibleInterpreter = errors.New("no compatible interpreter found")

type (
	// Resolved is the interpreter selected for the run.
	Resolved struct {
		Command string
		Version Version
	}

	// Resolver probes interpreter candidates in priority order.
	Resolver struct {
		runner       shell.Runner
		report       progress.Reporter
		probeTimeout time.Duration
	}

	// ResolverOption configures a Resolver.
	ResolverOption func(*Resolver)
)

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// NewResolver creates a Resolver that runs probes through runner.
func NewResolver(runner shell.Runner, sink progress.Sink, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		runner:       runner,
		report:       progress.For(sink, "interpreter"),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first candidate, in list order, whose reported version
// satisfies minimum. Candidates that cannot be run or whose output cannot be
// parsed are skipped with a warning.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, minimum Version) (Resolved, error) {
	for _, cand := range candidates {
		line := shell.Join(cand, "--version")
		res := r.runner.Run(ctx, shell.Command{
			Line:        line,
			Timeout:     r.probeTimeout,
			Description: "Checking " + cand,
		})
		if res.Failure == shell.FailureCanceled {
			return Resolved{}, fmt.Errorf("probing %s: %w", cand, res.Err(line))
		}
		if !res.Succeeded {
			r.report.Warn("skipping candidate", "candidate", cand, "reason", res.Failure)
			continue
		}

		// Older interpreters print their version on stderr.
		v, err := ParseVersion(res.Stdout)
		if err != nil {
			v, err = ParseVersion(res.Stderr)
		}
		if err != nil {
			r.report.Warn("skipping candidate", "candidate", cand, "reason", err)
			continue
		}

		if !v.Satisfies(minimum) {
			r.report.Warn("candidate too old", "candidate", cand, "version", v, "minimum", minimum)
			continue
		}

		r.report.Success("Found compatible interpreter", "candidate", cand, "version", v)
		return Resolved{Command: cand, Version: v}, nil
	}

	minLabel := fmt.Sprintf("%d.%d", minimum.Major, minimum.Minor)
	return Resolved{}, issue.NewErrorContext().
		WithIssue(issue.NoCompatibleInterpreterId).
		WithOperation("find a Python interpreter >= " + minLabel).
		WithResource(strings.Join(candidates, ", ")).
		WithSuggestion("Install Python " + minLabel + " or newer").
		WithSuggestion("Add its command name to interpreter.candidates in your config").
		Wrap(ErrNoCompatibleInterpreter).
		BuildError()
}
