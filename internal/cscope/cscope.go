// Package cscope queries a cscope database for static call relationships.
//
// The Source interface is the only thing the analysis core depends on.
// Client shells out to the cscope binary; any other implementation that
// satisfies Source (a cached index, a test fake) is substitutable.
package cscope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Call is one caller/callee relationship reported by the index.
type Call struct {
	Function string
	File     string
	Line     int
	Context  string
}

// Def is the source location where a function is defined.
type Def struct {
	File string
	Line int
}

// ErrNotFound reports a function the index has no knowledge of.
var ErrNotFound = errors.New("function not found in cscope database")

// QueryError wraps a failure to run or complete an index query
// (cscope missing, database corrupted, timeout). Unlike ErrNotFound it
// is fatal for the whole invocation.
type QueryError struct {
	Function string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("cscope query for %q failed: %v", e.Function, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Source supplies call-graph edges and definition locations.
type Source interface {
	// Callers returns the functions that call function.
	Callers(ctx context.Context, function string) ([]Call, error)
	// Callees returns the functions called by function.
	Callees(ctx context.Context, function string) ([]Call, error)
	// Definition returns where function is defined, or ErrNotFound.
	Definition(ctx context.Context, function string) (Def, error)
}

// cscope -L query type numbers.
const (
	queryDefinition = 1
	queryCalledBy   = 2
	queryCalling    = 3
)

// Client runs line-oriented cscope queries against an existing database.
type Client struct {
	DatabaseFile string
	SourceDir    string
	Timeout      time.Duration
}

// NewClient builds a client for the database under databasePath.
// cscopeFile defaults to cscope.out in databasePath; sourceDir defaults
// to databasePath.
func NewClient(databasePath, cscopeFile, sourceDir string, timeout time.Duration) *Client {
	if cscopeFile == "" {
		cscopeFile = filepath.Join(databasePath, "cscope.out")
	}
	if sourceDir == "" {
		sourceDir = databasePath
	}
	return &Client{
		DatabaseFile: cscopeFile,
		SourceDir:    sourceDir,
		Timeout:      timeout,
	}
}

// Validate checks that the database and source directory exist and that
// cscope can answer a probe query.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := os.Stat(c.DatabaseFile); err != nil {
		return fmt.Errorf("cscope database file not found: %s", c.DatabaseFile)
	}
	if _, err := os.Stat(c.SourceDir); err != nil {
		return fmt.Errorf("source directory not found: %s", c.SourceDir)
	}
	if _, err := c.run(ctx, queryDefinition, "main"); err != nil {
		return err
	}
	return nil
}

// Callers returns the functions calling function (cscope -L -3).
func (c *Client) Callers(ctx context.Context, function string) ([]Call, error) {
	return c.edges(ctx, queryCalling, function)
}

// Callees returns the functions called by function (cscope -L -2).
func (c *Client) Callees(ctx context.Context, function string) ([]Call, error) {
	return c.edges(ctx, queryCalledBy, function)
}

// Definition returns the definition site of function (cscope -L -1).
func (c *Client) Definition(ctx context.Context, function string) (Def, error) {
	out, err := c.run(ctx, queryDefinition, function)
	if err != nil {
		return Def{}, err
	}
	calls := parseCalls(out)
	if len(calls) == 0 {
		return Def{}, fmt.Errorf("%q: %w", function, ErrNotFound)
	}
	return Def{File: calls[0].File, Line: calls[0].Line}, nil
}

// edges runs an edge query. An empty result is disambiguated with a
// definition probe: no edges for a known function is a natural
// leaf/root, no edges for an unknown one is ErrNotFound.
func (c *Client) edges(ctx context.Context, queryType int, function string) ([]Call, error) {
	out, err := c.run(ctx, queryType, function)
	if err != nil {
		return nil, err
	}
	calls := parseCalls(out)
	if len(calls) == 0 {
		if _, err := c.Definition(ctx, function); err != nil {
			return nil, err
		}
	}
	return calls, nil
}

func (c *Client) run(ctx context.Context, queryType int, function string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "cscope",
		"-d", "-f", c.DatabaseFile, "-L", fmt.Sprintf("-%d", queryType), function)
	cmd.Dir = c.SourceDir

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &QueryError{Function: function, Err: fmt.Errorf("timed out after %s", c.Timeout)}
		}
		return nil, &QueryError{Function: function, Err: err}
	}
	return out, nil
}

// parseCalls parses cscope -L output, one "file function line context"
// record per line. Malformed lines are skipped.
func parseCalls(out []byte) []Call {
	var calls []Call
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 3 {
			continue
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		callCtx := ""
		if len(parts) == 4 {
			callCtx = strings.TrimSpace(parts[3])
		}
		calls = append(calls, Call{
			Function: parts[1],
			File:     parts[0],
			Line:     n,
			Context:  callCtx,
		})
	}
	return calls
}
