package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/imgprep/config"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/observability"
	"github.com/kbukum/imgprep/prep"
	"github.com/kbukum/imgprep/version"
)

// NewRunCommand returns the command that executes a prep run.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load, transform and split a dataset",
		Long:  "Run executes the configured pipeline once and writes one directory per split branch.",
		Args:  cobra.NoArgs,
		RunE:  runPrep,
	}
}

func loaderOptions(cmd *cobra.Command) []config.LoaderOption {
	var opts []config.LoaderOption
	if f, _ := cmd.Flags().GetString(configFlag); f != "" {
		opts = append(opts, config.WithConfigFile(f))
	}
	if f, _ := cmd.Flags().GetString(envFileFlag); f != "" {
		opts = append(opts, config.WithEnvFile(f))
	}
	return opts
}

func runPrep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := prep.Load(loaderOptions(cmd)...)
	if err != nil {
		return err
	}
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)

	info := version.Get()
	shutdown, err := observability.Setup(ctx, cfg.Telemetry, cfg.Name, info.Short())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("telemetry shutdown failed", logger.MergeWithError(nil, err))
		}
	}()

	opts := []prep.Option{prep.WithLogger(log.WithComponent("prep"))}
	if cfg.Telemetry.Enabled {
		m, err := observability.NewStageMetrics(observability.Meter("imgprep"))
		if err != nil {
			return err
		}
		opts = append(opts, prep.WithMetrics(m))
	}

	r, err := prep.NewRunner(ctx, *cfg, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.Run(ctx)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func printResult(w io.Writer, res *prep.Result) {
	fmt.Fprintf(w, "run %s: %d loaded, %d written to %s in %s\n",
		res.RunID, res.Loaded, res.Routed, res.Destination, res.Duration().Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANCH\tPERCENT\tCOUNT\tPREFIX")
	for _, b := range res.Branches {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\t%s\n", b.Name, b.Percent*100, b.Count, b.Prefix)
	}
	tw.Flush()
}
