package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/reporter"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

var lockCheckCmd = &cobra.Command{
	Use:   "lock-check <function> <lock>",
	Short: "Check whether a function is reached with a lock held",
	Long: `lock-check reports, per call chain, whether the named lock is held by
the callers on entry to the function. The lock argument is a generic
class token (spin, mutex, rcu, ...) or an exact identifier
(rcu_read_lock).`,
	Example: `  lock-trace lock-check my_function spin
  lock-trace lock-check my_function rcu_read_lock
  lock-trace --verbose lock-check my_function mutex`,
	Args: cobra.ExactArgs(2),
	RunE: runLockCheck,
}

var lockContextCmd = &cobra.Command{
	Use:   "lock-context <function> [locks]",
	Short: "Show held locks and lock operations along caller chains",
	Example: `  lock-trace lock-context my_function
  lock-trace lock-context my_function spin,rcu
  lock-trace --verbose lock-context my_function spin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLockContext,
}

var unprotectedCmd = &cobra.Command{
	Use:   "unprotected <function> <required-locks>",
	Short: "Find caller chains missing required lock protection",
	Long: `unprotected lists every call chain on which the function is reached
without all of the required locks held. Required locks are
comma-separated class tokens or exact identifiers; all must be held for
a chain to count as protected.`,
	Example: `  lock-trace unprotected my_function spin
  lock-trace unprotected my_function rtnl,rcu`,
	Args: cobra.ExactArgs(2),
	RunE: runUnprotected,
}

func init() {
	rootCmd.AddCommand(lockCheckCmd)
	rootCmd.AddCommand(lockContextCmd)
	rootCmd.AddCommand(unprotectedCmd)
}

// lockContexts enumerates caller chains of function and propagates lock
// state along them. Verbose analyzes raw paths, everything else the
// deduplicated set.
func lockContexts(ctx context.Context, tk *toolkit, function string) ([]locks.Context, error) {
	paths, err := tk.tracer.Enumerate(ctx, function, tracer.Callers, traceOptions())
	if err != nil {
		return nil, err
	}
	if !flagVerbose {
		paths = tracer.Dedupe(paths)
	}
	ctxs, err := tk.prop.Analyze(ctx, paths)
	if err != nil {
		return nil, err
	}
	if locks.AllScansFailed(ctxs) {
		return nil, fmt.Errorf("lock analysis for %q: %w", function, locks.ErrNoSource)
	}
	return ctxs, nil
}

func runLockCheck(cmd *cobra.Command, args []string) error {
	function, lockSpec := args[0], args[1]
	required := locks.ParseFilter(lockSpec)
	if required.Empty() {
		return fmt.Errorf("no lock given to check for")
	}

	ctx := cmd.Context()
	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}
	ctxs, err := lockContexts(ctx, tk, function)
	if err != nil {
		return err
	}
	results := locks.CheckAll(ctxs, required)

	out, cleanup, err := outputWriter()
	if err != nil {
		return err
	}
	defer cleanup()

	if flagFormat == "json" {
		return reporter.WriteResultsJSON(out, function, required, results)
	}
	reporter.WriteProtection(out, function, lockSpec, results)
	return nil
}

func runLockContext(cmd *cobra.Command, args []string) error {
	function := args[0]
	var filter locks.Filter
	if len(args) == 2 {
		filter = locks.ParseFilter(args[1])
	}

	ctx := cmd.Context()
	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}
	ctxs, err := lockContexts(ctx, tk, function)
	if err != nil {
		return err
	}

	out, cleanup, err := outputWriter()
	if err != nil {
		return err
	}
	defer cleanup()

	if flagFormat == "json" {
		return reporter.WriteContextsJSON(out, function, ctxs)
	}
	reporter.WriteLockContext(out, function, filter, ctxs)
	return nil
}

func runUnprotected(cmd *cobra.Command, args []string) error {
	function := args[0]
	required := locks.ParseFilter(args[1])
	if required.Empty() {
		return fmt.Errorf("no required locks given")
	}

	ctx := cmd.Context()
	tk, err := newToolkit(ctx)
	if err != nil {
		return err
	}
	ctxs, err := lockContexts(ctx, tk, function)
	if err != nil {
		return err
	}

	var unprotected []locks.Result
	for _, r := range locks.CheckAll(ctxs, required) {
		if !r.Protected {
			unprotected = append(unprotected, r)
		}
	}

	out, cleanup, err := outputWriter()
	if err != nil {
		return err
	}
	defer cleanup()

	if flagFormat == "json" {
		return reporter.WriteResultsJSON(out, function, required, unprotected)
	}
	reporter.WriteUnprotected(out, function, required, unprotected)
	return nil
}
