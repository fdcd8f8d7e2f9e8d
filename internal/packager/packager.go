// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/invowk/pybundle/internal/artifact"
	"github.com/invowk/pybundle/internal/deps"
	"github.com/invowk/pybundle/internal/entrypoint"
	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/internal/venv"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Packager turns a provisioned environment into a standalone executable.
	Packager struct {
		runner    shell.Runner
		installer *deps.Installer
		report    progress.Reporter
		goos      string
		workDir   string
	}

	// PackagerOption configures a Packager.
	PackagerOption func(*Packager)
)

// WithGOOS overrides the host OS (tests).
func WithGOOS(goos string) PackagerOption {
	return func(p *Packager) { p.goos = goos }
}

// WithWorkDir sets the directory relative paths are resolved against and the
// tool runs in.
func WithWorkDir(dir string) PackagerOption {
	return func(p *Packager) { p.workDir = dir }
}

// New creates a Packager. installer is used to install the packaging tool.
func New(runner shell.Runner, installer *deps.Installer, sink progress.Sink, opts ...PackagerOption) *Packager {
	p := &Packager{
		runner:    runner,
		installer: installer,
		report:    progress.For(sink, "packager"),
		goos:      runtime.GOOS,
		workDir:   ".",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package bundles the application described by cfg and verifies the result.
// The generated entry script, the tool's scratch directory and its spec file
// are removed whatever the outcome.
func (p *Packager) Package(ctx context.Context, env venv.Environment, cfg Config) (artifact.Artifact, error) {
	cfg = cfg.Normalized()

	launcher, err := entrypoint.Render(cfg.Entry)
	if err != nil {
		return artifact.Artifact{}, p.toolError(cfg, err)
	}

	if _, err := p.installer.Install(ctx, env, []deps.Package{{Name: cfg.Tool.Package, Critical: true}}); err != nil {
		return artifact.Artifact{}, err
	}

	outputPath := p.resolve(cfg.OutputPath(p.goos))
	// A leftover artifact from an earlier run must not satisfy verification.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.report.Warn("could not remove previous artifact", "path", outputPath, "err", err)
	}

	defer p.cleanTransients(cfg)

	scriptPath := p.resolve(cfg.EntryScript)
	err = entrypoint.WithScript(scriptPath, launcher, func(script string) error {
		return p.runTool(ctx, env, cfg, script)
	})
	if err != nil {
		return artifact.Artifact{}, err
	}

	a, err := artifact.Verify(outputPath, artifact.Check{MinSize: cfg.MinSize, GOOS: p.goos})
	if err != nil {
		return artifact.Artifact{}, issue.NewErrorContext().
			WithIssue(issue.PackagingVerificationFailedId).
			WithOperation("verify packaged executable").
			WithResource(outputPath).
			WithSuggestion("Check the packaging tool output above for warnings").
			Wrap(err).
			BuildError()
	}

	p.report.Success("Executable built", "path", a.Path, "size_mb", fmt.Sprintf("%.1f", a.SizeMB()))
	return a, nil
}

func (p *Packager) runTool(ctx context.Context, env venv.Environment, cfg Config, script string) error {
	argv := env.ModuleCommand(cfg.Tool.Module)
	argv = append(argv, cfg.Args(script, p.resolveData(env, cfg.ExtraData))...)
	line := shell.Join(argv...)

	res := p.runner.Run(ctx, shell.Command{
		Line:        line,
		Dir:         p.workDir,
		Timeout:     cfg.Timeout,
		Description: "Building executable with " + cfg.Tool.Module,
	})
	if res.Succeeded {
		return nil
	}
	if res.Failure == shell.FailureCanceled {
		return fmt.Errorf("packaging: %w", res.Err(line))
	}
	return p.toolError(cfg, res.Err(line))
}

// resolveData expands each mapping's source glob under the environment root.
// Patterns that match nothing are skipped with a warning.
func (p *Packager) resolveData(env venv.Environment, mappings []DataMapping) []string {
	var out []string
	for _, m := range mappings {
		pattern := filepath.Join(env.Root, filepath.FromSlash(m.Source))
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil || len(matches) == 0 {
			p.report.Warn("data directory not found, skipping", "pattern", m.Source)
			continue
		}
		for _, match := range matches {
			out = append(out, match+dataSeparator(p.goos)+m.Dest)
		}
	}
	return out
}

func (p *Packager) cleanTransients(cfg Config) {
	for _, path := range []string{cfg.WorkDir, cfg.SpecFile()} {
		if filepath.Clean(path) == "." {
			continue
		}
		full := p.resolve(path)
		if err := os.RemoveAll(full); err != nil {
			p.report.Warn("could not remove build leftovers", "path", full, "err", err)
		}
	}
}

func (p *Packager) toolError(cfg Config, cause error) error {
	return issue.NewErrorContext().
		WithIssue(issue.PackagingFailedId).
		WithOperation("build executable").
		WithResource(cfg.AppName).
		WithSuggestion("Look for missing hidden imports or data directories in the tool output").
		Wrap(cause).
		BuildError()
}

func (p *Packager) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.workDir, path)
}
