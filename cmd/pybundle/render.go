// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/invowk/pybundle/internal/app/pipeline"
	"github.com/invowk/pybundle/internal/deps"
	"github.com/invowk/pybundle/internal/fetch"
	"github.com/invowk/pybundle/internal/interpreter"
	"github.com/invowk/pybundle/internal/issue"

	"github.com/charmbracelet/fang"
	"golang.org/x/term"
)

// handleError prints a failed run: the phase label on its own line, the
// actionable message and the remediation text for the phase.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	phase := pipeline.PhaseOf(err)
	label := "Error"
	if phase != 0 {
		label = phase.String()
	}
	fmt.Fprintln(w, ErrorStyle.Render("✗ "+label))
	fmt.Fprintln(w, formatErrorForDisplay(err, a.verbose))

	iss := issue.Get(phase)
	if iss == nil {
		return
	}
	rendered, rerr := iss.Render(glamourStyle(w))
	if rerr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// glamourStyle picks the markdown style for w: colors only on a terminal.
func glamourStyle(w io.Writer) string {
	if f, ok := w.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}

func renderBuildSummary(w io.Writer, sum pipeline.BuildSummary) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ Build complete"))
	summaryLine(w, "artifact", CmdStyle.Render(sum.Artifact.Path))
	summaryLine(w, "size", fmt.Sprintf("%.1f MB", sum.Artifact.SizeMB()))
	summaryLine(w, "interpreter", interpreterLabel(sum.Interpreter))
	summaryLine(w, "environment", sum.Environment.Root)
	renderDegraded(w, sum.Dependencies)
}

func renderEnvironmentSummary(w io.Writer, sum pipeline.EnvironmentSummary) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ Environment ready"))
	summaryLine(w, "environment", CmdStyle.Render(sum.Environment.Root))
	summaryLine(w, "launcher", CmdStyle.Render(sum.Wrapper))
	summaryLine(w, "python", sum.Environment.Interpreter)
	summaryLine(w, "interpreter", interpreterLabel(sum.Interpreter))
	renderDegraded(w, sum.Dependencies)
}

func renderFetchSummary(w io.Writer, res fetch.Result) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ Binary ready"))
	summaryLine(w, "binary", CmdStyle.Render(res.Artifact.Path))
	summaryLine(w, "platform", res.Spec.Target.String())
	summaryLine(w, "size", fmt.Sprintf("%.1f MB", res.Artifact.SizeMB()))
	summaryLine(w, "version", res.Version)
}

func renderDegraded(w io.Writer, rep deps.Report) {
	for _, name := range rep.Degraded {
		fmt.Fprintln(w, WarningStyle.Render("! optional package not installed: "+name))
	}
}

func interpreterLabel(py interpreter.Resolved) string {
	return fmt.Sprintf("%s (%s)", py.Command, py.Version)
}

func summaryLine(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %s%s\n", summaryKeyStyle.Render(key), value)
}
