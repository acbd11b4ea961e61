// Package tracer enumerates call chains through a cscope-indexed call
// graph: bounded DFS with path-local cycle detection, chain
// deduplication, and prefix-tree construction for display.
package tracer

import (
	"context"
	"errors"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
)

// Direction selects which way the enumerator walks the graph.
type Direction int

const (
	// Callers walks reverse edges: from the target backward to its
	// root callers.
	Callers Direction = iota
	// Callees walks forward edges: from the origin out to its leaves.
	Callees
)

func (d Direction) String() string {
	if d == Callers {
		return "callers"
	}
	return "callees"
}

// Path is one call chain, ordered caller-first: for Callers the queried
// target is the last element, for Callees the origin is the first.
// TruncatedByCycle is set when traversal stopped because a function
// already appeared earlier on the chain.
type Path struct {
	Functions        []string
	TruncatedByCycle bool
}

// Options bounds and filters one enumeration.
type Options struct {
	MaxDepth           int
	ExcludeFunctions   []string
	ExcludeDirectories []string
}

// Tracer enumerates call chains against an edge source.
type Tracer struct {
	src cscope.Source
}

func New(src cscope.Source) *Tracer {
	return &Tracer{src: src}
}

// Enumerate returns every maximal call chain reaching (Callers) or
// leaving (Callees) origin. A chain ends when it would revisit a
// function already on it, reaches opts.MaxDepth functions, or runs out
// of neighbors. Chains touching an excluded function, or a function
// defined under an excluded directory, are dropped wholesale.
//
// An unknown origin is an error (cscope.ErrNotFound), never an empty
// result.
func (t *Tracer) Enumerate(ctx context.Context, origin string, dir Direction, opts Options) ([]Path, error) {
	if _, err := t.src.Definition(ctx, origin); err != nil {
		return nil, err
	}

	var paths []Path
	onPath := make(map[string]bool)

	var walk func(fn string, chain []string) error
	walk = func(fn string, chain []string) error {
		if onPath[fn] {
			paths = append(paths, finishPath(chain, dir, true))
			return nil
		}
		chain = append(chain, fn)
		if len(chain) >= opts.MaxDepth {
			paths = append(paths, finishPath(chain, dir, false))
			return nil
		}

		neighbors, err := t.neighbors(ctx, fn, dir)
		if err != nil {
			// Nodes discovered mid-walk may be unknown to the index
			// (macros, assembly stubs). Treat them as natural ends.
			if errors.Is(err, cscope.ErrNotFound) {
				neighbors = nil
			} else {
				return err
			}
		}
		if len(neighbors) == 0 {
			paths = append(paths, finishPath(chain, dir, false))
			return nil
		}

		onPath[fn] = true
		defer delete(onPath, fn)
		for _, n := range neighbors {
			if err := walk(n.Function, chain); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(origin, nil); err != nil {
		return nil, err
	}
	return t.filterPaths(ctx, paths, opts)
}

func (t *Tracer) neighbors(ctx context.Context, fn string, dir Direction) ([]cscope.Call, error) {
	if dir == Callers {
		return t.src.Callers(ctx, fn)
	}
	return t.src.Callees(ctx, fn)
}

// finishPath copies the working chain into a Path. Caller chains are
// built target-first during the walk and reversed here so that the
// outermost caller leads.
func finishPath(chain []string, dir Direction, truncated bool) Path {
	fns := make([]string, len(chain))
	if dir == Callers {
		for i, f := range chain {
			fns[len(chain)-1-i] = f
		}
	} else {
		copy(fns, chain)
	}
	return Path{Functions: fns, TruncatedByCycle: truncated}
}
