package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/petal/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Run(cmd.Context(), runOptions(cmd))
		},
	}
	addPipelineFlags(cmd)
	addEventFlags(cmd)
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline and run it again whenever files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Watch(cmd.Context(), runOptions(cmd))
		},
	}
	addPipelineFlags(cmd)
	addEventFlags(cmd)
	return cmd
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("event", "e", "push", "Triggering event: push or pull_request")
	cmd.Flags().StringP("branch", "b", "", "Branch the event targets (default: the checked out branch)")
	cmd.Flags().BoolP("no-cache", "n", false, "Skip cache restore and save")
}

func runOptions(cmd *cobra.Command) app.RunOptions {
	event, _ := cmd.Flags().GetString("event")
	branch, _ := cmd.Flags().GetString("branch")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	return app.RunOptions{
		Options: pipelineOptions(cmd),
		Event:   event,
		Branch:  branch,
		NoCache: noCache,
	}
}
