package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

var (
	flagDatabasePath string
	flagCscopeFile   string
	flagSourceDir    string
	flagMaxDepth     int
	flagTree         bool
	flagVerbose      bool
	flagExcludeFuncs string
	flagExcludeDirs  string
	flagFormat       string
	flagOutput       string
	flagTimeout      time.Duration
	flagLockPatterns string
)

var rootCmd = &cobra.Command{
	Use:   "lock-trace",
	Short: "Trace call chains and lock contexts in a cscope-indexed C codebase",
	Long: `lock-trace answers two questions about a C codebase indexed with cscope:
  - which call chains reach or leave a function?
  - along those chains, what locks are held when the function is reached?

The lock model is a textual scan of each function's source, so indirect
calls, macros, and conditional lock paths can produce false results.

Run 'lock-trace callers <func>' or 'lock-trace lock-check <func> <lock>'
to get started.`,
	SilenceUsage: true,
	// main prints the error with an exit code; don't double up.
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagDatabasePath, "database-path", "d", ".", "Directory containing the cscope database")
	pf.StringVarP(&flagCscopeFile, "cscope-file", "f", "", "Path to cscope.out (default: cscope.out in database directory)")
	pf.StringVarP(&flagSourceDir, "source-dir", "s", "", "Source code directory (default: database directory)")
	pf.IntVarP(&flagMaxDepth, "max-depth", "m", 10, "Maximum call chain length")
	pf.BoolVarP(&flagTree, "tree", "t", false, "Display unique call chains as a tree")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Show all paths including duplicates")
	pf.StringVarP(&flagExcludeFuncs, "exclude-functions", "e", "", "Comma-separated functions; paths containing any are dropped")
	pf.StringVarP(&flagExcludeDirs, "exclude-directories", "E", "", "Comma-separated directories; paths through them are dropped")
	pf.StringVar(&flagFormat, "format", "terminal", "Output format: terminal or json")
	pf.StringVar(&flagOutput, "output", "", "Write output to file instead of stdout")
	pf.DurationVar(&flagTimeout, "timeout", 30*time.Second, "Per-query cscope timeout")
	pf.StringVar(&flagLockPatterns, "lock-patterns", "", "TOML file with additional lock patterns")
}

// toolkit bundles the collaborators one command invocation needs.
// Everything is built fresh per invocation; nothing is cached across
// runs.
type toolkit struct {
	client  *cscope.Client
	tracer  *tracer.Tracer
	scanner *locks.Scanner
	prop    *locks.Propagator
}

func newToolkit(ctx context.Context) (*toolkit, error) {
	if flagMaxDepth < 1 {
		return nil, fmt.Errorf("--max-depth must be at least 1")
	}
	client := cscope.NewClient(flagDatabasePath, flagCscopeFile, flagSourceDir, flagTimeout)
	if err := client.Validate(ctx); err != nil {
		return nil, err
	}

	registry := locks.DefaultRegistry()
	if flagLockPatterns != "" {
		if err := registry.LoadPatterns(flagLockPatterns); err != nil {
			return nil, err
		}
	}

	scanner := locks.NewScanner(client, client.SourceDir, registry)
	return &toolkit{
		client:  client,
		tracer:  tracer.New(client),
		scanner: scanner,
		prop:    locks.NewPropagator(client, scanner),
	}, nil
}

func traceOptions() tracer.Options {
	return tracer.Options{
		MaxDepth:           flagMaxDepth,
		ExcludeFunctions:   splitList(flagExcludeFuncs),
		ExcludeDirectories: splitList(flagExcludeDirs),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// outputWriter returns a writer for the output destination (file or
// stdout).
func outputWriter() (io.Writer, func(), error) {
	if flagOutput == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(flagOutput)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
