// Package reporter renders analysis results for the terminal (colored)
// and as JSON.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

var (
	bold      = color.New(color.Bold)
	red       = color.New(color.FgRed, color.Bold)
	green     = color.New(color.FgGreen)
	cyan      = color.New(color.FgCyan)
	yellow    = color.New(color.FgYellow)
	dim       = color.New(color.Faint)
	separator = strings.Repeat("━", 50)
)

func directionText(dir tracer.Direction) string {
	if dir == tracer.Callers {
		return "to"
	}
	return "from"
}

func directionNoun(dir tracer.Direction) string {
	if dir == tracer.Callers {
		return "caller"
	}
	return "callee"
}

func chainString(p tracer.Path) string {
	s := strings.Join(p.Functions, " → ")
	if p.TruncatedByCycle {
		s += dim.Sprint(" (cycle)")
	}
	return s
}

// WriteChains writes deduplicated call chains as a flat list.
func WriteChains(w io.Writer, function string, dir tracer.Direction, paths []tracer.Path) {
	bold.Fprintf(w, "\nUnique call chains %s function '%s'\n", directionText(dir), function)
	fmt.Fprintln(w, separator)
	if len(paths) == 0 {
		fmt.Fprintf(w, "No %s paths found.\n", directionNoun(dir))
		return
	}
	for _, p := range paths {
		fmt.Fprintf(w, "  - %s\n", chainString(p))
	}
	fmt.Fprintln(w)
	dim.Fprintf(w, "  Unique call chains found: %d\n", len(paths))
}

// WriteChainsVerbose writes raw enumerator output, duplicates included.
func WriteChainsVerbose(w io.Writer, function string, dir tracer.Direction, paths []tracer.Path) {
	bold.Fprintf(w, "\nAll call paths %s function '%s'\n", directionText(dir), function)
	fmt.Fprintln(w, separator)
	if len(paths) == 0 {
		fmt.Fprintf(w, "No %s paths found.\n", directionNoun(dir))
		return
	}
	for i, p := range paths {
		fmt.Fprintf(w, "%3d: %s\n", i+1, chainString(p))
	}
	fmt.Fprintln(w)
	dim.Fprintf(w, "  Total paths found: %d\n", len(paths))
}

// WriteTree writes deduplicated chains merged into a prefix tree.
// Chains cut by cycle detection are annotated so the display never
// implies they reach a natural root or leaf.
func WriteTree(w io.Writer, function string, dir tracer.Direction, tree *tracer.Tree, count int) {
	bold.Fprintf(w, "\nCall tree %s function '%s'\n", directionText(dir), function)
	fmt.Fprintln(w, separator)
	roots := tree.Roots()
	if len(roots) == 0 {
		fmt.Fprintf(w, "No %s paths found.\n", directionNoun(dir))
		return
	}
	for _, root := range roots {
		writeNode(w, root, "", "", "    ")
	}
	fmt.Fprintln(w)
	dim.Fprintf(w, "  Unique call chains found: %d\n", count)
}

func writeNode(w io.Writer, n *tracer.Node, prefix, connector, childPrefix string) {
	name := n.Name
	if n.Truncated {
		name += dim.Sprint(" (cycle)")
	}
	fmt.Fprintf(w, "%s%s%s\n", prefix, connector, name)
	children := n.Children()
	for i, c := range children {
		last := i == len(children)-1
		if last {
			writeNode(w, c, childPrefix, "└── ", childPrefix+"    ")
		} else {
			writeNode(w, c, childPrefix, "├── ", childPrefix+"│   ")
		}
	}
}

// WriteProtection writes per-chain protection verdicts for lock-check.
func WriteProtection(w io.Writer, function, lockSpec string, results []locks.Result) {
	bold.Fprintf(w, "\nLock protection analysis for function '%s' with lock '%s'\n", function, lockSpec)
	fmt.Fprintln(w, separator)
	if len(results) == 0 {
		fmt.Fprintln(w, "No call paths found for analysis.")
		return
	}

	protected := 0
	for _, r := range results {
		if r.Protected {
			protected++
		}
	}
	fmt.Fprintf(w, "Summary: %d/%d paths have lock protection\n\n", protected, len(results))

	for _, r := range results {
		if r.Protected {
			green.Fprint(w, "✓ PROTECTED")
		} else {
			red.Fprint(w, "✗ UNPROTECTED")
		}
		fmt.Fprintf(w, ": %s\n", chainString(r.Context.Path))
		if len(r.Context.ScanGaps) > 0 {
			yellow.Fprintf(w, "    no lock info for: %s\n", strings.Join(r.Context.ScanGaps, ", "))
		}
	}
}

// WriteLockContext writes held locks and the operation ledger per chain.
func WriteLockContext(w io.Writer, function string, filter locks.Filter, ctxs []locks.Context) {
	bold.Fprintf(w, "\nLock context analysis for function '%s'\n", function)
	if !filter.Empty() {
		fmt.Fprintf(w, "Tracking locks: %s\n", strings.Join(filter.Tokens(), ", "))
	}
	fmt.Fprintln(w, separator)
	if len(ctxs) == 0 {
		fmt.Fprintln(w, "No call paths found for analysis.")
		return
	}

	for i, c := range ctxs {
		fmt.Fprintf(w, "%3d: %s\n", i+1, chainString(c.Path))
		held := heldDisplay(c, filter)
		fmt.Fprint(w, "     Held locks: ")
		if len(held) == 0 {
			fmt.Fprintln(w, "None")
		} else {
			cyan.Fprintln(w, strings.Join(held, ", "))
		}
		if len(c.Ledger) > 0 {
			fmt.Fprintln(w, "     Lock operations:")
			for _, op := range c.Ledger {
				fmt.Fprintf(w, "       %s %s (%s) in %s\n", op.Action, op.Lock, op.Class, op.Function)
			}
		}
		if len(c.ScanGaps) > 0 {
			yellow.Fprintf(w, "     no lock info for: %s\n", strings.Join(c.ScanGaps, ", "))
		}
		fmt.Fprintln(w)
	}
	dim.Fprintf(w, "  Call chains found: %d\n", len(ctxs))
}

// heldDisplay narrows the held set to the tracked locks when a filter
// is given; the ledger above it always shows every operation.
func heldDisplay(c locks.Context, filter locks.Filter) []string {
	if filter.Empty() {
		return c.HeldLocks()
	}
	var out []string
	for _, name := range c.HeldLocks() {
		if filter.Matches(name, c.Held[name]) {
			out = append(out, name)
		}
	}
	return out
}

// WriteUnprotected writes the chains that miss required locks.
func WriteUnprotected(w io.Writer, function string, required locks.Filter, unprotected []locks.Result) {
	bold.Fprintf(w, "\nUnprotected calls to function '%s'\n", function)
	fmt.Fprintf(w, "Required locks: %s\n", strings.Join(required.Tokens(), ", "))
	fmt.Fprintln(w, separator)

	if len(unprotected) == 0 {
		green.Fprintln(w, "✓ All call paths are properly protected!")
		return
	}

	fmt.Fprintf(w, "Found %d unprotected call paths:\n\n", len(unprotected))
	for i, r := range unprotected {
		fmt.Fprintf(w, "%3d: %s\n", i+1, chainString(r.Context.Path))
		red.Fprintf(w, "     Missing locks: %s\n", strings.Join(r.Missing, ", "))
		if held := r.Context.HeldLocks(); len(held) > 0 {
			fmt.Fprintf(w, "     Held locks: %s\n", strings.Join(held, ", "))
		}
		if len(r.Context.ScanGaps) > 0 {
			yellow.Fprintf(w, "     no lock info for: %s\n", strings.Join(r.Context.ScanGaps, ", "))
		}
		fmt.Fprintln(w)
	}
}

// WriteStats writes the per-function call and lock summary.
func WriteStats(w io.Writer, function string, stats tracer.Stats, summary locks.Summary) {
	bold.Fprintf(w, "\nStatistics for function '%s'\n", function)
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Callers: %d (%d unique)\n", stats.Callers, stats.UniqueCallers)
	fmt.Fprintf(w, "Callees: %d (%d unique)\n", stats.Callees, stats.UniqueCallees)
	fmt.Fprintf(w, "Call paths: %d\n", summary.Paths)
	fmt.Fprintf(w, "Protected paths: %d\n", summary.Protected)
	fmt.Fprintf(w, "Unprotected paths: %d\n", summary.Unprotected)
	fmt.Fprintf(w, "Locks encountered: %d\n", len(summary.Locks))
	if len(summary.Locks) > 0 {
		fmt.Fprintf(w, "Lock names: %s\n", strings.Join(summary.Locks, ", "))
	}
}
