package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/imgprep/catalog"
	"github.com/kbukum/imgprep/database"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/prep"
	"github.com/kbukum/imgprep/validation"
)

// NewRunsCommand returns the command that lists recorded runs.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the catalog",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	cmd.PersistentFlags().String("db", "", "catalog database path (default: catalog.database.dsn from the config)")
	cmd.Flags().Int("limit", catalog.DefaultListLimit, "number of runs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its branches",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	})
	return cmd
}

func openCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	dsn, _ := cmd.Flags().GetString("db")
	dbCfg := database.Config{DSN: dsn}
	if dsn == "" {
		cfg, err := prep.Load(loaderOptions(cmd)...)
		if err != nil {
			return nil, err
		}
		dbCfg = cfg.Catalog.Database
	}
	return catalog.Open(cmd.Context(), dbCfg, logger.WithComponent("catalog"))
}

func listRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	c, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	runs, err := c.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTARTED\tDURATION\tSTATUS\tLOADED\tBRANCHES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Name, r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			r.Status, r.Loaded, branchSummary(r.Branches))
	}
	return tw.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	if err := validation.UUID("run-id", args[0]); err != nil {
		return err
	}
	c, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := c.GetRun(cmd.Context(), strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:         %s\n", r.ID)
	fmt.Fprintf(out, "name:        %s\n", r.Name)
	fmt.Fprintf(out, "status:      %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(out, "error:       %s\n", r.Error)
	}
	fmt.Fprintf(out, "source:      %s\n", r.Source)
	fmt.Fprintf(out, "destination: %s\n", r.Destination)
	fmt.Fprintf(out, "started:     %s (%s)\n", r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "loaded:      %d, routed %d\n", r.Loaded, r.Routed)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tPERCENT\tCOUNT")
	for _, b := range r.Branches {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\n", b.Name, b.Percent*100, b.Count)
	}
	return tw.Flush()
}

func branchSummary(branches []catalog.Branch) string {
	s := ""
	for i, b := range branches {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%d", b.Name, b.Count)
	}
	return s
}
