// Package cmd contains the imgprep commands.
package cmd

import (
	"github.com/spf13/cobra"
)

const (
	configFlag  = "config"
	envFileFlag = "env-file"
)

// NewRootCommand returns the imgprep command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "imgprep",
		Short: "Prepare labeled image datasets",
		Long: `imgprep loads images from a directory or object store, runs them through a
chain of transforms and splits the result into train/val/test sets.

Configuration is read from a YAML file and IMGPREP_ environment variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String(configFlag, "", "path to the run configuration file")
	root.PersistentFlags().String(envFileFlag, "", "path to a .env file loaded before the environment is read")

	root.AddCommand(
		NewRunCommand(),
		NewInspectCommand(),
		NewRunsCommand(),
		NewVersionCommand(),
	)
	return root
}
