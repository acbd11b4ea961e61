package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

type jsonChain struct {
	Functions        []string `json:"functions"`
	TruncatedByCycle bool     `json:"truncated_by_cycle,omitempty"`
}

type jsonChainReport struct {
	Function  string      `json:"function"`
	Direction string      `json:"direction"`
	Unique    bool        `json:"unique"`
	Chains    []jsonChain `json:"chains"`
	Count     int         `json:"count"`
}

type jsonOperation struct {
	Action   string `json:"action"`
	Lock     string `json:"lock"`
	Class    string `json:"class"`
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type jsonContext struct {
	Chain          jsonChain       `json:"chain"`
	HeldLocks      []string        `json:"held_locks"`
	LockOperations []jsonOperation `json:"lock_operations,omitempty"`
	// Functions whose source was unreadable: lock info unknown there,
	// which is distinct from provably holding nothing.
	NoLockInfo []string `json:"no_lock_info,omitempty"`
	Protected  *bool    `json:"protected,omitempty"`
	Missing    []string `json:"missing_locks,omitempty"`
}

type jsonLockReport struct {
	Function      string        `json:"function"`
	RequiredLocks []string      `json:"required_locks,omitempty"`
	Contexts      []jsonContext `json:"contexts"`
	Count         int           `json:"count"`
}

type jsonStatsReport struct {
	Function         string   `json:"function"`
	Callers          int      `json:"callers"`
	UniqueCallers    int      `json:"unique_callers"`
	Callees          int      `json:"callees"`
	UniqueCallees    int      `json:"unique_callees"`
	CallPaths        int      `json:"call_paths"`
	ProtectedPaths   int      `json:"protected_paths"`
	UnprotectedPaths int      `json:"unprotected_paths"`
	Locks            []string `json:"locks,omitempty"`
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func toJSONChain(p tracer.Path) jsonChain {
	return jsonChain{Functions: p.Functions, TruncatedByCycle: p.TruncatedByCycle}
}

func toJSONContext(c locks.Context) jsonContext {
	jc := jsonContext{
		Chain:      toJSONChain(c.Path),
		HeldLocks:  c.HeldLocks(),
		NoLockInfo: c.ScanGaps,
	}
	for _, op := range c.Ledger {
		jc.LockOperations = append(jc.LockOperations, jsonOperation{
			Action:   string(op.Action),
			Lock:     op.Lock,
			Class:    string(op.Class),
			Function: op.Function,
			File:     op.File,
			Line:     op.Line,
		})
	}
	return jc
}

// WriteChainsJSON writes a callers/callees result as JSON.
func WriteChainsJSON(w io.Writer, function string, dir tracer.Direction, paths []tracer.Path, unique bool) error {
	report := jsonChainReport{
		Function:  function,
		Direction: dir.String(),
		Unique:    unique,
		Chains:    make([]jsonChain, 0, len(paths)),
		Count:     len(paths),
	}
	for _, p := range paths {
		report.Chains = append(report.Chains, toJSONChain(p))
	}
	return encode(w, report)
}

// WriteContextsJSON writes a lock-context result as JSON.
func WriteContextsJSON(w io.Writer, function string, ctxs []locks.Context) error {
	report := jsonLockReport{
		Function: function,
		Contexts: make([]jsonContext, 0, len(ctxs)),
		Count:    len(ctxs),
	}
	for _, c := range ctxs {
		report.Contexts = append(report.Contexts, toJSONContext(c))
	}
	return encode(w, report)
}

// WriteResultsJSON writes lock-check or unprotected results as JSON.
func WriteResultsJSON(w io.Writer, function string, required locks.Filter, results []locks.Result) error {
	report := jsonLockReport{
		Function:      function,
		RequiredLocks: required.Tokens(),
		Contexts:      make([]jsonContext, 0, len(results)),
		Count:         len(results),
	}
	for _, r := range results {
		jc := toJSONContext(r.Context)
		protected := r.Protected
		jc.Protected = &protected
		jc.Missing = r.Missing
		report.Contexts = append(report.Contexts, jc)
	}
	return encode(w, report)
}

// WriteStatsJSON writes the stats result as JSON.
func WriteStatsJSON(w io.Writer, function string, stats tracer.Stats, summary locks.Summary) error {
	return encode(w, jsonStatsReport{
		Function:         function,
		Callers:          stats.Callers,
		UniqueCallers:    stats.UniqueCallers,
		Callees:          stats.Callees,
		UniqueCallees:    stats.UniqueCallees,
		CallPaths:        summary.Paths,
		ProtectedPaths:   summary.Protected,
		UnprotectedPaths: summary.Unprotected,
		Locks:            summary.Locks,
	})
}
