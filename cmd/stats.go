package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/reporter"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

var statsCmd = &cobra.Command{
	Use:   "stats <function>",
	Short: "Show call and lock statistics for a function",
	Example: `  lock-trace stats my_function
  lock-trace stats my_function --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	function := args[0]
	ctx := cmd.Context()

	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}

	stats, err := tk.tracer.Stats(ctx, function)
	if err != nil {
		return err
	}

	paths, err := tk.tracer.Enumerate(ctx, function, tracer.Callers, traceOptions())
	if err != nil {
		return err
	}
	ctxs, err := tk.prop.Analyze(ctx, tracer.Dedupe(paths))
	if err != nil {
		return err
	}
	summary := locks.Summarize(ctxs)

	out, cleanup, err := outputWriter()
	if err != nil {
		return err
	}
	defer cleanup()

	if flagFormat == "json" {
		return reporter.WriteStatsJSON(out, function, stats, summary)
	}
	reporter.WriteStats(out, function, stats, summary)
	return nil
}
