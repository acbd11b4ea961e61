package locks

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

// scanParallelism bounds concurrent source scans.
const scanParallelism = 8

// ErrNoSource reports that no function source could be read at all, so
// the analysis produced no usable lock information.
var ErrNoSource = errors.New("no source files could be read for lock analysis")

// Context is the lock state of one call chain at its target.
type Context struct {
	Path tracer.Path
	// Held maps concrete lock name to class for every lock still open
	// on entry to the target: acquired earlier on the chain, before the
	// call into the next hop, and not yet released.
	Held map[string]Class
	// Ledger is every caller-side operation in path order, kept in full
	// for display regardless of call-site cutoffs.
	Ledger []Operation
	// ScanGaps lists chain functions whose source could not be read.
	// Their contribution is "unknown", not "no locks held".
	ScanGaps []string
}

// HeldLocks returns the held set as a sorted name list.
func (c *Context) HeldLocks() []string {
	out := make([]string, 0, len(c.Held))
	for name := range c.Held {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Propagator folds per-function lock operations along call chains.
type Propagator struct {
	src     cscope.Source
	scanner *Scanner
}

func NewPropagator(src cscope.Source, scanner *Scanner) *Propagator {
	return &Propagator{src: src, scanner: scanner}
}

// scanResult caches one function's scan output and callee list. Entries
// are created before the fan-out starts so each goroutine writes only
// its own struct.
type scanResult struct {
	ops   []Operation
	known bool
	calls []cscope.Call
}

// Analyze computes the lock context of every chain. Per-function scans
// are independent and fan out concurrently; the ordered fold then
// consumes them in path order.
func (p *Propagator) Analyze(ctx context.Context, paths []tracer.Path) ([]Context, error) {
	scans, err := p.scanAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	out := make([]Context, 0, len(paths))
	for _, path := range paths {
		out = append(out, propagate(path, scans))
	}
	return out, nil
}

// scanAll scans every caller-side function appearing in paths. The
// target of each chain is skipped: only locks held by callers on entry
// matter, never locks the target takes internally.
func (p *Propagator) scanAll(ctx context.Context, paths []tracer.Path) (map[string]*scanResult, error) {
	scans := make(map[string]*scanResult)
	for _, path := range paths {
		for i := 0; i < len(path.Functions)-1; i++ {
			if scans[path.Functions[i]] == nil {
				scans[path.Functions[i]] = &scanResult{}
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for fn, res := range scans {
		g.Go(func() error {
			ops, known, err := p.scanner.Scan(gctx, fn)
			if err != nil {
				return err
			}
			res.ops, res.known = ops, known
			calls, err := p.src.Callees(gctx, fn)
			if err != nil {
				if errors.Is(err, cscope.ErrNotFound) {
					return nil
				}
				return err
			}
			res.calls = calls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scans, nil
}

// propagate folds the chain's ledger into the held set at the target.
// For each hop, only operations textually before the call into the next
// hop contribute: a lock acquired and released before that call is net
// zero by the time control passes down. Releasing an absent lock is a
// no-op; unbalanced releases are common across function boundaries.
func propagate(path tracer.Path, scans map[string]*scanResult) Context {
	c := Context{Path: path, Held: make(map[string]Class)}
	fns := path.Functions
	for i := 0; i < len(fns)-1; i++ {
		r := scans[fns[i]]
		if r == nil {
			continue
		}
		if !r.known {
			c.ScanGaps = append(c.ScanGaps, fns[i])
			continue
		}
		c.Ledger = append(c.Ledger, r.ops...)

		cutoff := callLine(r.calls, fns[i+1])
		for _, op := range r.ops {
			if cutoff > 0 && op.Line >= cutoff {
				continue
			}
			switch op.Action {
			case ActionAcquire:
				c.Held[op.Lock] = op.Class
			case ActionRelease:
				delete(c.Held, acquireName(op.Lock, op.Class, op.Action))
			}
		}
	}
	return c
}

// callLine finds the line where caller invokes callee, or 0 if the call
// site cannot be located (every operation contributes then — the
// conservative fallback).
func callLine(calls []cscope.Call, callee string) int {
	for _, call := range calls {
		if call.Function == callee {
			return call.Line
		}
	}
	return 0
}

// AllScansFailed reports whether lock scanning produced no information
// for any chain: every caller-side function was a scan gap. Commands
// treat this as a filesystem failure rather than "nothing held".
func AllScansFailed(ctxs []Context) bool {
	callers := 0
	for _, c := range ctxs {
		if n := len(c.Path.Functions) - 1; n > 0 {
			callers += n
			if len(c.ScanGaps) != n {
				return false
			}
		}
	}
	return callers > 0
}
