package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Heman10x-NGU/locktrace/internal/reporter"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

var callersCmd = &cobra.Command{
	Use:   "callers <function>",
	Short: "Trace caller chains reaching a function",
	Example: `  lock-trace callers schedule
  lock-trace --max-depth 5 callers schedule
  lock-trace --tree callers schedule
  lock-trace --verbose callers schedule
  lock-trace -E drivers,fs -e debug_print callers schedule`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrace(cmd, args[0], tracer.Callers)
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees <function>",
	Short: "Trace callee chains leaving a function",
	Example: `  lock-trace callees kmalloc
  lock-trace --max-depth 3 callees kmalloc
  lock-trace --tree callees kmalloc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrace(cmd, args[0], tracer.Callees)
	},
}

func init() {
	rootCmd.AddCommand(callersCmd)
	rootCmd.AddCommand(calleesCmd)
}

func runTrace(cmd *cobra.Command, function string, dir tracer.Direction) error {
	ctx := cmd.Context()
	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}

	paths, err := tk.tracer.Enumerate(ctx, function, dir, traceOptions())
	if err != nil {
		return err
	}

	out, cleanup, err := outputWriter()
	if err != nil {
		return err
	}
	defer cleanup()

	// Verbose reports raw enumerator output; every other mode works on
	// the deduplicated set.
	if flagVerbose && !flagTree {
		if flagFormat == "json" {
			return reporter.WriteChainsJSON(out, function, dir, paths, false)
		}
		reporter.WriteChainsVerbose(out, function, dir, paths)
		return nil
	}

	unique := tracer.Dedupe(paths)
	if flagFormat == "json" {
		return reporter.WriteChainsJSON(out, function, dir, unique, true)
	}
	if flagTree {
		reporter.WriteTree(out, function, dir, tracer.BuildTree(unique), len(unique))
		return nil
	}
	reporter.WriteChains(out, function, dir, unique)
	return nil
}
