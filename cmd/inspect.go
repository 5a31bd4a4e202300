package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/prep"
	"github.com/kbukum/imgprep/storage"
	"github.com/kbukum/imgprep/storage/memory"
)

// NewInspectCommand returns the command that lists and summarizes a
// directory of images without writing anything.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "List a directory of images and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE:  inspect,
	}
	flags := cmd.Flags()
	flags.StringSlice("ext", nil, "extensions to load (default .jpg)")
	flags.Bool("recursive", false, "descend into subdirectories")
	flags.Bool("label-from-dir", false, "label images with their parent directory name")
	flags.String("manifest", "", "annotation manifest to apply")
	flags.Int("max-lines", 20, "listing length before the middle is elided")
	return cmd
}

func inspect(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	exts, _ := flags.GetStringSlice("ext")
	recursive, _ := flags.GetBool("recursive")
	labelFromDir, _ := flags.GetBool("label-from-dir")
	manifest, _ := flags.GetString("manifest")
	maxLines, _ := flags.GetInt("max-lines")

	cfg := prep.Config{
		Source: prep.SourceConfig{
			Dir:          args[0],
			Extensions:   exts,
			Recursive:    recursive,
			LabelFromDir: labelFromDir,
			Manifest:     manifest,
		},
		Output: prep.OutputConfig{Storage: storage.Config{Provider: storage.ProviderMemory}},
	}
	r, err := prep.NewRunner(cmd.Context(), cfg,
		prep.WithLogger(logger.WithComponent("inspect")),
		prep.WithOutputStore(memory.New()),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	c, stats, err := r.Inspect(cmd.Context())
	if err != nil {
		return err
	}
	c.SetMaxPrintLines(maxLines)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, c.String())
	fmt.Fprint(out, stats.String())
	return nil
}
