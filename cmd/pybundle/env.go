// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/spf13/cobra"

func newEnvCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Create a reusable environment with a launcher script",
		Long: `Create a reusable environment with a launcher script.

This runs the same interpreter, environment and dependency phases as
'build' but, instead of packaging, writes an executable launcher into the
environment root. On POSIX hosts the environment also gets a 'python'
alias for 'python3' unless environment.create_alias is false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := app.newOrchestrator(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			sum, err := o.RunEnvironment(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			renderEnvironmentSummary(app.Stdout, sum)
			return nil
		},
	}
}
