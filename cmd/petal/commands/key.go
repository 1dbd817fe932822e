package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache keys the pipeline would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Key(cmd.Context(), pipelineOptions(cmd))
		},
	}
	addPipelineFlags(cmd)
	return cmd
}
