// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/invowk/pybundle/internal/app/pipeline"
	"github.com/invowk/pybundle/internal/config"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/shell"
)

// tokenEnv names the variable holding an optional release host token.
const tokenEnv = "GITHUB_TOKEN"

type (
	// App is the composition root shared by every command.
	App struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
		Getenv func(string) string
		// HTTPClient is used for binary downloads; nil means http.DefaultClient.
		HTTPClient *http.Client

		flags globalFlags
		// verbose is the effective verbosity once configuration is loaded.
		verbose bool
	}

	globalFlags struct {
		verbose    bool
		configFile string
		workDir    string
	}
)

// NewApp creates an App that reads configuration from disk and writes to
// the given streams.
func NewApp(stdout, stderr io.Writer) *App {
	return &App{
		Config: config.NewProvider(),
		Stdout: stdout,
		Stderr: stderr,
		Getenv: os.Getenv,
	}
}

// workDir returns the absolute directory the run operates in.
func (a *App) workDir() (string, error) {
	dir := a.flags.workDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve work directory %q: %w", dir, err)
	}
	return abs, nil
}

// loadConfig loads the effective configuration and settles verbosity: the
// flag, the config file and a detected CI host each turn it on.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	workDir, err := a.workDir()
	if err != nil {
		return nil, "", err
	}
	cfg, source, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configFile,
		WorkDir:        workDir,
	})
	if err != nil {
		return nil, "", err
	}

	_, inCI := progress.DetectCI(a.Getenv)
	a.verbose = a.flags.verbose || cfg.UI.Verbose || inCI
	return cfg, source, nil
}

// newOrchestrator loads configuration and builds a pipeline bound to the
// work directory.
func (a *App) newOrchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	workDir, err := a.workDir()
	if err != nil {
		return nil, err
	}

	sink := progress.NewLogSink(a.Stderr, a.verbose)
	runner := shell.NewRunner(sink, shell.WithDir(workDir))

	opts := []pipeline.Option{
		pipeline.WithWorkDir(workDir),
		pipeline.WithGetenv(a.Getenv),
		pipeline.WithToken(a.Getenv(tokenEnv)),
		pipeline.WithUserAgent(config.AppName + "/" + Version),
	}
	if a.HTTPClient != nil {
		opts = append(opts, pipeline.WithHTTPClient(a.HTTPClient))
	}
	return pipeline.New(cfg, runner, sink, opts...), nil
}
