package tracer

import (
	"context"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
)

// Stats summarizes the direct call surface of one function.
type Stats struct {
	Callers       int
	Callees       int
	UniqueCallers int
	UniqueCallees int
}

// Stats counts the direct callers and callees of function. Totals count
// call sites; unique counts distinct function names.
func (t *Tracer) Stats(ctx context.Context, function string) (Stats, error) {
	callers, err := t.src.Callers(ctx, function)
	if err != nil {
		return Stats{}, err
	}
	callees, err := t.src.Callees(ctx, function)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Callers:       len(callers),
		Callees:       len(callees),
		UniqueCallers: countUnique(callers),
		UniqueCallees: countUnique(callees),
	}, nil
}

func countUnique(calls []cscope.Call) int {
	names := make(map[string]bool, len(calls))
	for _, c := range calls {
		names[c.Function] = true
	}
	return len(names)
}
