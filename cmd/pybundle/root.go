// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/invowk/pybundle/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "pybundle",
		Short: "Build a Python application into a self-contained executable",
		Long: TitleStyle.Render("pybundle") + SubtitleStyle.Render(" - Python application build orchestrator") + `

pybundle finds a compatible Python interpreter, creates an isolated
environment, installs the application's packages and bundles everything
into a single executable. It can also fetch a pre-built helper binary
for the current platform.

` + SubtitleStyle.Render("Examples:") + `
  pybundle build                 Package the application
  pybundle env                   Create a reusable environment with a launcher
  pybundle fetch                 Download the pre-built binary for this host
  pybundle fetch --os windows    Download the binary for another platform
  pybundle config show           Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/pybundle/config.cue)")
	pf.StringVarP(&app.flags.workDir, "workdir", "C", ".", "directory the build runs in")

	root.AddCommand(
		newBuildCommand(app),
		newEnvCommand(app),
		newFetchCommand(app),
		newConfigCommand(app),
	)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with the process arguments and exits with its status.
// This is called by main.main().
func Execute() {
	os.Exit(Run())
}

// Run runs the CLI with the process arguments and returns the exit status.
func Run() int {
	return run(context.Background(), NewApp(os.Stdout, os.Stderr), os.Args[1:])
}

func run(ctx context.Context, app *App, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(app.Stderr, "%s %v\n\n%s", ErrorStyle.Render("✗ internal error:"), r, debug.Stack())
			code = int(types.ExitFailure)
		}
	}()

	root := newRootCommand(app)
	root.SetArgs(args)

	err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	)
	return int(exitCodeOf(err))
}
