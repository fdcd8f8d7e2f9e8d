// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/spf13/cobra"

func newBuildCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Package the application into a single executable",
		Long: `Package the application into a single executable.

The build resolves a compatible interpreter, recreates the isolated
environment from scratch, installs the configured packages and runs the
packaging tool. The resulting executable is verified before the build
reports success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := app.newOrchestrator(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			sum, err := o.RunPackage(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			renderBuildSummary(app.Stdout, sum)
			return nil
		},
	}
}
