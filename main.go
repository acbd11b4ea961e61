package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Heman10x-NGU/locktrace/cmd"
	"github.com/Heman10x-NGU/locktrace/internal/cscope"
	"github.com/Heman10x-NGU/locktrace/internal/locks"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error classes to exit codes: 1 unknown function or bad
// arguments, 2 indexer/query failure, 3 no source readable during lock
// scanning.
func exitCode(err error) int {
	var qe *cscope.QueryError
	switch {
	case errors.As(err, &qe):
		return 2
	case errors.Is(err, locks.ErrNoSource):
		return 3
	default:
		return 1
	}
}
