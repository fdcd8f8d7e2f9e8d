// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/invowk/pybundle/internal/artifact"
	"github.com/invowk/pybundle/internal/config"
	"github.com/invowk/pybundle/internal/deps"
	"github.com/invowk/pybundle/internal/entrypoint"
	"github.com/invowk/pybundle/internal/fetch"
	"github.com/invowk/pybundle/internal/interpreter"
	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/packager"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/internal/venv"
	"github.com/invowk/pybundle/pkg/types"
)

type (
	// retryDelay waits between retry attempts; nil means a real timer.
	retryDelay = func(ctx context.Context, d time.Duration) error

	// Orchestrator runs the build pipelines against one configuration and
	// working directory.
	Orchestrator struct {
		cfg        *config.Config
		runner     shell.Runner
		sink       progress.Sink
		report     progress.Reporter
		workDir    string
		goos       string
		goarch     string
		httpClient *http.Client
		token      string
		userAgent  string
		getenv     func(string) string
		sleep      retryDelay
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// BuildSummary describes a finished packaging run.
	BuildSummary struct {
		Interpreter  interpreter.Resolved
		Environment  venv.Environment
		Dependencies deps.Report
		Artifact     artifact.Artifact
	}

	// EnvironmentSummary describes a finished environment run.
	EnvironmentSummary struct {
		Interpreter  interpreter.Resolved
		Environment  venv.Environment
		Dependencies deps.Report
		// Wrapper is the launcher written into the environment.
		Wrapper string
	}

	// FetchRequest selects the binary to download. A zero Target means the
	// orchestrator's own platform; an empty OutputDir uses the configured one.
	FetchRequest struct {
		Target    fetch.Target
		OutputDir string
	}
)

// WithWorkDir sets the directory every relative path is resolved against.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// WithPlatform overrides the host platform (tests and cross-target fetches).
func WithPlatform(goos, goarch string) Option {
	return func(o *Orchestrator) {
		o.goos = goos
		o.goarch = goarch
	}
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = c }
}

// WithToken sets a release host token for downloads.
func WithToken(token string) Option {
	return func(o *Orchestrator) { o.token = token }
}

// WithUserAgent sets the User-Agent for downloads.
func WithUserAgent(ua string) Option {
	return func(o *Orchestrator) { o.userAgent = ua }
}

// WithGetenv overrides the environment lookup used for CI detection.
func WithGetenv(fn func(string) string) Option {
	return func(o *Orchestrator) { o.getenv = fn }
}

// WithRetrySleep replaces the wait between retry attempts.
func WithRetrySleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New creates an Orchestrator.
func New(cfg *config.Config, runner shell.Runner, sink progress.Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		runner:     runner,
		sink:       sink,
		report:     progress.For(sink, "pipeline"),
		workDir:    ".",
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
		httpClient: http.DefaultClient,
		userAgent:  "pybundle",
		getenv:     os.Getenv,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunPackage resolves an interpreter, provisions a fresh environment,
// installs the configured packages and bundles the application into a single
// verified executable.
func (o *Orchestrator) RunPackage(ctx context.Context) (BuildSummary, error) {
	o.logHost()

	py, env, rep, err := o.prepare(ctx)
	if err != nil {
		return BuildSummary{}, err
	}

	pk := packager.New(o.runner, o.installer(), o.sink,
		packager.WithGOOS(o.goos),
		packager.WithWorkDir(o.workDir),
	)
	a, err := pk.Package(ctx, env, packagerConfig(o.cfg, o.goos, o.goarch))
	if err != nil {
		return BuildSummary{}, err
	}

	o.reportDegraded(rep)
	o.report.Success("Build complete", "artifact", a.Path, "size_mb", fmt.Sprintf("%.1f", a.SizeMB()))
	return BuildSummary{Interpreter: py, Environment: env, Dependencies: rep, Artifact: a}, nil
}

// RunEnvironment provisions a reusable environment with the configured
// packages and writes an executable launcher into it.
func (o *Orchestrator) RunEnvironment(ctx context.Context) (EnvironmentSummary, error) {
	o.logHost()

	py, env, rep, err := o.prepare(ctx)
	if err != nil {
		return EnvironmentSummary{}, err
	}

	launcher, err := entrypoint.Render(entrySpec(o.cfg.App))
	if err != nil {
		return EnvironmentSummary{}, o.environmentError(env.Root, err)
	}
	wrapper, err := venv.WriteWrapper(env, o.cfg.Environment.Wrapper, launcher)
	if err != nil {
		return EnvironmentSummary{}, o.environmentError(env.Root, err)
	}

	// Both files must still be there for the environment to be usable.
	for _, path := range []string{wrapper, env.Interpreter} {
		if _, err := artifact.Verify(path, artifact.Check{GOOS: o.goos}); err != nil {
			return EnvironmentSummary{}, o.environmentError(env.Root, err)
		}
	}

	o.reportDegraded(rep)
	o.report.Success("Environment complete", "root", env.Root, "wrapper", wrapper)
	return EnvironmentSummary{Interpreter: py, Environment: env, Dependencies: rep, Wrapper: wrapper}, nil
}

// RunFetch downloads and verifies the pre-built binary for req.Target.
func (o *Orchestrator) RunFetch(ctx context.Context, req FetchRequest) (fetch.Result, error) {
	o.logHost()

	target := req.Target
	if target.OS == "" {
		target.OS = o.goos
	}
	if target.Arch == "" {
		target.Arch = o.goarch
	}
	outDir := req.OutputDir
	if outDir == "" {
		outDir = o.cfg.Fetch.OutputDir
	}

	client := fetch.NewClient(
		fetch.WithHTTPClient(o.httpClient),
		fetch.WithBaseURL(o.cfg.Fetch.ReleaseBase),
		fetch.WithToken(o.token),
		fetch.WithUserAgent(o.userAgent),
	)
	f := fetch.NewFetcher(client, o.runner, o.sink,
		fetch.WithDownloadPolicy(policy(o.cfg.Fetch.Retry, o.sleep)),
		fetch.WithVerifyTimeout(o.cfg.Fetch.VerifyTimeout),
		fetch.WithHostOS(o.goos),
	)
	res, err := f.Fetch(ctx, fetch.Request{
		Target:        target,
		OutputDir:     o.resolve(outDir),
		ChecksumAsset: o.cfg.Fetch.ChecksumAsset,
	})
	if err != nil {
		return fetch.Result{}, err
	}

	o.report.Success("Fetch complete", "binary", res.Artifact.Path, "size_mb", fmt.Sprintf("%.1f", res.Artifact.SizeMB()))
	return res, nil
}

// prepare runs the phases shared by the packaging and environment runs.
func (o *Orchestrator) prepare(ctx context.Context) (interpreter.Resolved, venv.Environment, deps.Report, error) {
	minimum, err := interpreter.ParseMinVersion(o.cfg.Interpreter.MinVersion)
	if err != nil {
		return interpreter.Resolved{}, venv.Environment{}, deps.Report{}, fmt.Errorf("interpreter.min_version: %w", err)
	}

	resolver := interpreter.NewResolver(o.runner, o.sink,
		interpreter.WithProbeTimeout(o.cfg.Interpreter.ProbeTimeout),
	)
	py, err := resolver.Resolve(ctx, o.cfg.Interpreter.Candidates, minimum)
	if err != nil {
		return interpreter.Resolved{}, venv.Environment{}, deps.Report{}, err
	}

	provisioner := venv.NewProvisioner(o.runner, o.sink,
		venv.WithGOOS(o.goos),
		venv.WithWorkDir(o.workDir),
		venv.WithCreateTimeout(o.cfg.Environment.CreateTimeout),
	)
	env, err := provisioner.Provision(ctx, py, venvOptions(o.cfg.Environment))
	if err != nil {
		return py, venv.Environment{}, deps.Report{}, err
	}

	inst := o.installer()
	if err := inst.UpgradeInstaller(ctx, env); err != nil {
		return py, env, deps.Report{}, err
	}
	rep, err := inst.Install(ctx, env, packages(o.cfg.Dependencies))
	if err != nil {
		return py, env, rep, err
	}
	return py, env, rep, nil
}

func (o *Orchestrator) installer() *deps.Installer {
	return deps.NewInstaller(o.runner, o.sink,
		deps.WithPolicy(policy(o.cfg.Dependencies.Retry, o.sleep)),
		deps.WithInstallTimeout(o.cfg.Dependencies.InstallTimeout),
	)
}

// logHost records where the run happens. CI detection only affects what is
// logged.
func (o *Orchestrator) logHost() {
	kv := []any{"os", o.goos, "arch", o.goarch, "workdir", o.workDir}
	if name, ok := progress.DetectCI(o.getenv); ok {
		kv = append(kv, "ci", name)
	}
	if progress.InContainer() {
		kv = append(kv, "container", true)
	}
	o.report.Info("Starting", kv...)
}

func (o *Orchestrator) reportDegraded(rep deps.Report) {
	for _, name := range rep.Degraded {
		o.report.Warn("optional package missing from the build", "package", name)
	}
}

func (o *Orchestrator) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.workDir, path)
}

func (o *Orchestrator) environmentError(root string, cause error) error {
	return issue.NewErrorContext().
		WithIssue(issue.EnvironmentCreationFailedId).
		WithOperation("write environment launcher").
		WithResource(root).
		Wrap(cause).
		BuildError()
}

// ExitCodeFor maps a run's error to the process exit code: 0 for success,
// 130 when the run was interrupted and 1 for every other failure.
func ExitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, context.Canceled):
		return types.ExitInterrupted
	default:
		return types.ExitFailure
	}
}

// PhaseOf returns the failure phase of a run's error. Interrupts report
// Interrupted; errors from outside any phase report zero.
func PhaseOf(err error) issue.Id {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return issue.InterruptedId
	}
	return issue.IdOf(err)
}
