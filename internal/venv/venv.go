// SPDX-License-Identifier: MPL-2.0

package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/invowk/pybundle/internal/interpreter"
	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/pkg/platform"
)

// DefaultCreateTimeout bounds each environment creation strategy.
const DefaultCreateTimeout = 5 * time.Minute

var (
	// ErrAllStrategiesFailed is the cause when no creation strategy succeeded.
	ErrAllStrategiesFailed = errors.New("all environment creation strategies failed")

	// ErrInterpreterMissing is the cause when creation reported success but
	// no interpreter executable exists in the environment.
	ErrInterpreterMissing = errors.New("environment has no interpreter executable")

	// ErrRootEnclosesWorkDir is the cause when the environment directory is
	// the working directory or one of its parents.
	ErrRootEnclosesWorkDir = errors.New("environment directory contains the working directory")
)

type (
	// Environment is a provisioned isolated runtime. Paths are discovered by
	// probing the filesystem after creation.
	Environment struct {
		Root        string
		BinDir      string
		Interpreter string
		// Installer is the package installer executable; empty means the
		// installer must be invoked as "<Interpreter> -m pip".
		Installer string
	}

	// Options describe one provisioning request.
	Options struct {
		// Dir is the environment directory, relative to the work directory
		// unless absolute.
		Dir string
		// StaleArtifacts are removed along with Dir before creation.
		StaleArtifacts []string
		// CreateAlias creates a "python" symlink to "python3" on POSIX hosts
		// when only the latter exists.
		CreateAlias bool
	}

	// Provisioner creates isolated environments using an ordered list of
	// fallback strategies.
	Provisioner struct {
		runner        shell.Runner
		report        progress.Reporter
		goos          string
		workDir       string
		createTimeout time.Duration
	}

	// ProvisionerOption configures a Provisioner.
	ProvisionerOption func(*Provisioner)

	strategy struct {
		name string
		args func(py, dir string) []string
	}
)

// strategies are tried left to right; the first success wins.
var strategies = []strategy{
	{name: "venv (copies)", args: func(py, dir string) []string { return []string{py, "-m", "venv", "--copies", dir} }},
	{name: "virtualenv module", args: func(py, dir string) []string { return []string{py, "-m", "virtualenv", dir} }},
	{name: "system virtualenv", args: func(_, dir string) []string { return []string{"virtualenv", dir} }},
}

// WithGOOS overrides the host OS used for path layout decisions (tests).
func WithGOOS(goos string) ProvisionerOption {
	return func(p *Provisioner) { p.goos = goos }
}

// WithWorkDir sets the directory relative paths are resolved against.
func WithWorkDir(dir string) ProvisionerOption {
	return func(p *Provisioner) { p.workDir = dir }
}

// WithCreateTimeout overrides DefaultCreateTimeout.
func WithCreateTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		if d > 0 {
			p.createTimeout = d
		}
	}
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(runner shell.Runner, sink progress.Sink, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		runner:        runner,
		report:        progress.For(sink, "venv"),
		goos:          runtime.GOOS,
		workDir:       ".",
		createTimeout: DefaultCreateTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision removes any previous environment and stale build outputs, then
// creates a fresh environment with the first strategy that works.
// Running it twice in a row yields the same result both times.
func (p *Provisioner) Provision(ctx context.Context, py interpreter.Resolved, opts Options) (Environment, error) {
	root := p.resolve(opts.Dir)
	if p.enclosesWorkDir(root) {
		return Environment{}, issue.NewErrorContext().
			WithIssue(issue.EnvironmentCreationFailedId).
			WithOperation("create isolated environment").
			WithResource(root).
			WithSuggestion("Set environment.dir to a subdirectory such as spotdl-env").
			Wrap(ErrRootEnclosesWorkDir).
			BuildError()
	}

	p.clean(append([]string{root}, opts.StaleArtifacts...))

	created := false
	for i, s := range strategies {
		if i > 0 {
			// A failed strategy may leave a partial tree behind.
			p.remove(root)
		}
		line := shell.Join(s.args(py.Command, root)...)
		res := p.runner.Run(ctx, shell.Command{
			Line:        line,
			Dir:         p.workDir,
			Timeout:     p.createTimeout,
			Description: "Creating environment with " + s.name,
		})
		if res.Failure == shell.FailureCanceled {
			return Environment{}, fmt.Errorf("creating environment: %w", res.Err(line))
		}
		if res.Succeeded {
			created = true
			break
		}
		p.report.Warn("strategy failed", "strategy", s.name, "reason", res.Failure)
	}

	if !created {
		return Environment{}, p.creationError(root, ErrAllStrategiesFailed)
	}

	env := p.probe(root)
	if env.Interpreter == "" {
		return Environment{}, p.creationError(root, ErrInterpreterMissing)
	}

	if opts.CreateAlias {
		p.alias(&env)
	}

	p.report.Success("Environment ready", "root", env.Root, "python", env.Interpreter)
	return env, nil
}

// InstallerCommand returns the argv prefix used to invoke the package installer.
func (e Environment) InstallerCommand() []string {
	if e.Installer != "" {
		return []string{e.Installer}
	}
	return []string{e.Interpreter, "-m", "pip"}
}

// ModuleCommand returns the argv prefix for "python -m <module>".
func (e Environment) ModuleCommand(module string) []string {
	return []string{e.Interpreter, "-m", module}
}

func (p *Provisioner) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.workDir, path)
}

func (p *Provisioner) clean(paths []string) {
	for _, path := range paths {
		p.remove(p.resolve(path))
	}
}

func (p *Provisioner) remove(path string) {
	if p.enclosesWorkDir(path) {
		p.report.Warn("refusing to remove a directory that contains the working directory", "path", path)
		return
	}
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	p.report.Debug("removing", "path", path)
	if err := os.RemoveAll(path); err != nil {
		p.report.Warn("could not remove stale artifact", "path", path, "err", err)
	}
}

// enclosesWorkDir reports whether removing path would also remove the
// working directory. Paths that cannot be made absolute count as enclosing.
func (p *Provisioner) enclosesWorkDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	work, err := filepath.Abs(p.workDir)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(abs, work)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

// probe discovers the bin directory, interpreter and installer.
func (p *Provisioner) probe(root string) Environment {
	binDir := filepath.Join(root, "bin")
	if platform.IsWindows(p.goos) {
		binDir = filepath.Join(root, "Scripts")
	}

	env := Environment{Root: root, BinDir: binDir}
	env.Interpreter = firstExisting(binDir, p.goos, "python3", "python")
	env.Installer = firstExisting(binDir, p.goos, "pip3", "pip")
	if env.Installer == "" {
		p.report.Warn("no installer executable found, falling back to python -m pip")
	}
	return env
}

func (p *Provisioner) alias(env *Environment) {
	if !platform.IsPOSIX(p.goos) {
		return
	}
	target := filepath.Join(env.BinDir, "python3")
	link := filepath.Join(env.BinDir, "python")
	if !isFile(target) {
		return
	}
	if _, err := os.Lstat(link); err == nil {
		return
	}
	if err := os.Symlink("python3", link); err != nil {
		p.report.Warn("could not create python alias", "link", link, "err", err)
		return
	}
	p.report.Debug("created alias", "link", link)
}

func (p *Provisioner) creationError(root string, cause error) error {
	return issue.NewErrorContext().
		WithIssue(issue.EnvironmentCreationFailedId).
		WithOperation("create isolated environment").
		WithResource(root).
		WithSuggestions(remediation(p.goos)...).
		Wrap(cause).
		BuildError()
}

// remediation returns the platform-specific install hints for the
// environment tooling.
func remediation(goos string) []string {
	switch goos {
	case platform.Darwin:
		return []string{"macOS: pip3 install virtualenv"}
	case platform.Windows:
		return []string{"Windows: reinstall Python with the pip and venv components enabled"}
	default:
		return []string{
			"Ubuntu/Debian: sudo apt install python3-venv",
			"CentOS/RHEL: sudo yum install python3-virtualenv",
		}
	}
}

func firstExisting(dir, goos string, names ...string) string {
	for _, name := range names {
		path := filepath.Join(dir, name+platform.ExeSuffix(goos))
		if isFile(path) {
			return path
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
