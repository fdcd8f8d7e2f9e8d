// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"slices"

	"github.com/invowk/pybundle/internal/app/pipeline"
	"github.com/invowk/pybundle/internal/fetch"

	"github.com/spf13/cobra"
)

func newFetchCommand(app *App) *cobra.Command {
	var req pipeline.FetchRequest

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the pre-built binary for a platform",
		Long: `Download the pre-built binary for a platform.

The target defaults to the host operating system and architecture. The
download is retried on transient failures, checked against the published
checksums when they are available and smoke-tested with --version.

Set ` + tokenEnv + ` to authenticate against the release host.`,
		Example: `  pybundle fetch
  pybundle fetch --os linux --arch arm64 --output-dir tools`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := app.newOrchestrator(cmd.Context())
			if err != nil {
				return pipelineExit(err)
			}
			res, err := o.RunFetch(cmd.Context(), req)
			if err != nil {
				return pipelineExit(err)
			}
			renderFetchSummary(app.Stdout, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Target.OS, "os", "", "target operating system (default: host)")
	cmd.Flags().StringVar(&req.Target.Arch, "arch", "", "target architecture (default: host)")
	cmd.Flags().StringVar(&req.OutputDir, "output-dir", "", "directory the binary is written to (default: fetch.output_dir)")

	_ = cmd.RegisterFlagCompletionFunc("os", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return supportedOS(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// supportedOS lists the operating systems with a published binary.
func supportedOS() []string {
	var out []string
	for _, t := range fetch.DefaultTable.Targets() {
		if !slices.Contains(out, t.OS) {
			out = append(out, t.OS)
		}
	}
	return out
}
