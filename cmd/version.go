package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/imgprep/version"
)

// NewVersionCommand returns the command that prints the build version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the imgprep version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "imgprep %s\n", version.Get())
			return nil
		},
	}
}
