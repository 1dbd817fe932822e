package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/petal/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove cache entries and recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cacheOnly, _ := cmd.Flags().GetBool("cache")
			runsOnly, _ := cmd.Flags().GetBool("runs")

			opts := app.CleanOptions{Options: pipelineOptions(cmd)}

			switch {
			case cacheOnly || runsOnly:
				opts.Cache = cacheOnly
				opts.Runs = runsOnly
			default:
				// Default behavior: clean everything
				opts.Cache = true
				opts.Runs = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	addPipelineFlags(cmd)
	cmd.Flags().BoolP("cache", "c", false, "Remove cache entries")
	cmd.Flags().BoolP("runs", "r", false, "Remove recorded run reports")

	return cmd
}
