// SPDX-License-Identifier: MPL-2.0

// Package deps installs Python packages into a provisioned environment.
//
// Packages marked critical are retried with a fixed delay and abort the run
// when every attempt fails. Everything else gets one attempt and degrades to
// a warning with a manual install hint.
package deps

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/retry"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/internal/venv"
)

const (
	// DefaultInstallTimeout bounds a single install command.
	DefaultInstallTimeout = 5 * time.Minute

	// installerPackage is the package name of the installer itself.
	installerPackage = "pip"
)

// DefaultCriticalPolicy is applied to critical packages: three attempts, five
// seconds apart.
var DefaultCriticalPolicy = retry.Policy{MaxAttempts: 3, Delay: 5 * time.Second}

type (
	// Package is one requirement to install.
	Package struct {
		Name     string
		Critical bool
	}

	// Report summarizes an installation run.
	Report struct {
		Installed []string
		// Degraded lists non-critical packages that failed to install.
		Degraded []string
	}

	// Installer runs the package installer inside an environment.
	Installer struct {
		runner         shell.Runner
		report         progress.Reporter
		policy         retry.Policy
		installTimeout time.Duration
	}

	// InstallerOption configures an Installer.
	InstallerOption func(*Installer)
)

// WithPolicy overrides DefaultCriticalPolicy.
func WithPolicy(p retry.Policy) InstallerOption {
	return func(i *Installer) { i.policy = p }
}

// WithInstallTimeout overrides DefaultInstallTimeout.
func WithInstallTimeout(d time.Duration) InstallerOption {
	return func(i *Installer) {
		if d > 0 {
			i.installTimeout = d
		}
	}
}

// NewInstaller creates an Installer.
func NewInstaller(runner shell.Runner, sink progress.Sink, opts ...InstallerOption) *Installer {
	i := &Installer{
		runner:         runner,
		report:         progress.For(sink, "deps"),
		policy:         DefaultCriticalPolicy,
		installTimeout: DefaultInstallTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// UpgradeInstaller upgrades the installer itself. It walks an ordered chain of
// invocations and never fails the run; only cancellation is returned.
func (i *Installer) UpgradeInstaller(ctx context.Context, env venv.Environment) error {
	chain := [][]string{env.InstallerCommand()}
	if env.Installer != "" {
		chain = append(chain, env.ModuleCommand("pip"))
	}

	for _, prefix := range chain {
		line := shell.Join(append(slices.Clone(prefix), "install", "--upgrade", installerPackage)...)
		res := i.runner.Run(ctx, shell.Command{
			Line:        line,
			Timeout:     i.installTimeout,
			Description: "Upgrading pip",
		})
		if res.Failure == shell.FailureCanceled {
			return fmt.Errorf("upgrading installer: %w", res.Err(line))
		}
		if res.Succeeded {
			return nil
		}
	}
	i.report.Warn("could not upgrade pip, continuing with the bundled version")
	return nil
}

// Install installs pkgs in order. A critical failure stops the loop and is
// returned as a DependencyInstallFailed error; the partial report is still
// returned.
func (i *Installer) Install(ctx context.Context, env venv.Environment, pkgs []Package) (Report, error) {
	var rep Report
	for _, pkg := range pkgs {
		if pkg.Critical {
			if err := i.installCritical(ctx, env, pkg.Name); err != nil {
				return rep, err
			}
			rep.Installed = append(rep.Installed, pkg.Name)
			continue
		}

		res, line := i.installOnce(ctx, env, pkg.Name)
		if res.Failure == shell.FailureCanceled {
			return rep, fmt.Errorf("installing %s: %w", pkg.Name, res.Err(line))
		}
		if !res.Succeeded {
			i.report.Warn("optional package failed to install", "package", pkg.Name, "hint", "pip install "+pkg.Name)
			rep.Degraded = append(rep.Degraded, pkg.Name)
			continue
		}
		rep.Installed = append(rep.Installed, pkg.Name)
	}
	return rep, nil
}

func (i *Installer) installCritical(ctx context.Context, env venv.Environment, name string) error {
	err := retry.Do(ctx, i.policy, func(attempt int) (bool, error) {
		if attempt > 0 {
			i.report.Info("retrying install", "package", name, "attempt", attempt+1, "of", i.policy.MaxAttempts)
		}
		res, line := i.installOnce(ctx, env, name)
		if res.Succeeded {
			return false, nil
		}
		// Cancellation is not a transient failure.
		return res.Failure != shell.FailureCanceled, res.Err(line)
	})
	if err == nil {
		i.report.Success("Installed", "package", name)
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("installing %s: %w", name, err)
	}
	return issue.NewErrorContext().
		WithIssue(issue.DependencyInstallFailedId).
		WithOperation("install required package").
		WithResource(name).
		WithSuggestion("Check network access to the package index").
		WithSuggestion("Try it by hand: pip install " + name).
		Wrap(err).
		BuildError()
}

func (i *Installer) installOnce(ctx context.Context, env venv.Environment, name string) (shell.Result, string) {
	line := shell.Join(append(env.InstallerCommand(), "install", name)...)
	res := i.runner.Run(ctx, shell.Command{
		Line:        line,
		Timeout:     i.installTimeout,
		Description: "Installing " + name,
	})
	return res, line
}
