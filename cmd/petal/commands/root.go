// Package commands implements the CLI commands for the petal pipeline runner.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/petal/internal/app"
	"go.trai.ch/petal/internal/build"
)

// CLI represents the command line interface for petal.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Configure(logFormat, color string) error
	Run(ctx context.Context, opts app.RunOptions) error
	Watch(ctx context.Context, opts app.RunOptions) error
	Key(ctx context.Context, opts app.Options) error
	Validate(ctx context.Context, opts app.Options) error
	Status(ctx context.Context, opts app.Options) error
	Clean(ctx context.Context, opts app.CleanOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "petal",
		Short:         "Run CI pipelines locally",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().String("log-format", "pretty", "Log format: pretty or json")
	rootCmd.PersistentFlags().String("color", "auto", "Color output: auto, always, or never")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		logFormat, _ := cmd.Flags().GetString("log-format")
		color, _ := cmd.Flags().GetString("color")
		return c.app.Configure(logFormat, color)
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newKeyCmd())
	rootCmd.AddCommand(c.newValidateCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// addPipelineFlags registers the flags selecting the pipeline and workspace.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("pipeline", "p", "", "Pipeline file (default: discover petal.yaml, else the built-in pipeline)")
	cmd.Flags().StringP("workspace", "w", "", "Project directory (default: current directory)")
	cmd.Flags().String("cache-dir", "", "Cache store directory (default: user cache dir)")
}

func pipelineOptions(cmd *cobra.Command) app.Options {
	pipeline, _ := cmd.Flags().GetString("pipeline")
	workspace, _ := cmd.Flags().GetString("workspace")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	return app.Options{Pipeline: pipeline, Workspace: workspace, CacheDir: cacheDir}
}
