// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invowk/pybundle/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `pybundle config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pybundle configuration",
		Long: `Manage pybundle configuration.

Configuration is read from the first of:
  - the file passed with --config
  - the user config file (Linux: ~/.config/pybundle/config.cue)
  - pybundle.cue in the work directory

Any setting can be overridden with a PYBUNDLE_ environment variable,
e.g. PYBUNDLE_UI_VERBOSE=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, source, err := app.loadConfig(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(app.Stdout, "// source: %s\n", source)
			fmt.Fprint(app.Stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	var project bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				path string
				err  error
			)
			if project {
				path, err = initProjectConfig(app)
			} else {
				path, err = config.CreateDefaultConfig()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Stdout, SuccessStyle.Render("✓ Config file: ")+CmdStyle.Render(path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&project, "project", false, "write "+config.LocalConfigFile+" into the work directory instead")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}

// initProjectConfig writes the default configuration into the work
// directory. An existing file is left untouched.
func initProjectConfig(app *App) (string, error) {
	dir, err := app.workDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, config.LocalConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("inspect %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(config.GenerateCUE(config.DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
