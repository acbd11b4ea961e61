package reporter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heman10x-NGU/locktrace/internal/locks"
	"github.com/Heman10x-NGU/locktrace/internal/tracer"
)

func init() {
	color.NoColor = true
}

func TestWriteChainsJSON(t *testing.T) {
	var buf bytes.Buffer
	paths := []tracer.Path{
		{Functions: []string{"kthreadd", "kthread_create", "schedule"}},
		{Functions: []string{"f", "schedule"}, TruncatedByCycle: true},
	}
	require.NoError(t, WriteChainsJSON(&buf, "schedule", tracer.Callers, paths, true))

	var report struct {
		Function  string `json:"function"`
		Direction string `json:"direction"`
		Unique    bool   `json:"unique"`
		Count     int    `json:"count"`
		Chains    []struct {
			Functions        []string `json:"functions"`
			TruncatedByCycle bool     `json:"truncated_by_cycle"`
		} `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "schedule", report.Function)
	assert.Equal(t, "callers", report.Direction)
	assert.True(t, report.Unique)
	assert.Equal(t, 2, report.Count)
	require.Len(t, report.Chains, 2)
	assert.True(t, report.Chains[1].TruncatedByCycle)
}

func TestWriteResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	required := locks.ParseFilter("spin")
	results := []locks.Result{
		{
			Context: locks.Context{
				Path: tracer.Path{Functions: []string{"caller1", "my_function"}},
				Held: map[string]locks.Class{"spin_lock_bh": locks.ClassSpinlock},
			},
			Protected: true,
		},
		{
			Context: locks.Context{
				Path:     tracer.Path{Functions: []string{"caller2", "my_function"}},
				ScanGaps: []string{"caller2"},
			},
			Protected: false,
			Missing:   []string{"spin"},
		},
	}
	require.NoError(t, WriteResultsJSON(&buf, "my_function", required, results))

	var report struct {
		RequiredLocks []string `json:"required_locks"`
		Contexts      []struct {
			HeldLocks  []string `json:"held_locks"`
			NoLockInfo []string `json:"no_lock_info"`
			Protected  *bool    `json:"protected"`
			Missing    []string `json:"missing_locks"`
		} `json:"contexts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, []string{"spin"}, report.RequiredLocks)
	require.Len(t, report.Contexts, 2)
	assert.Equal(t, []string{"spin_lock_bh"}, report.Contexts[0].HeldLocks)
	assert.True(t, *report.Contexts[0].Protected)
	assert.False(t, *report.Contexts[1].Protected)
	assert.Equal(t, []string{"spin"}, report.Contexts[1].Missing)
	assert.Equal(t, []string{"caller2"}, report.Contexts[1].NoLockInfo,
		"unreadable-source gaps must stay visible, not collapse into held=none")
}

func TestWriteTreeGlyphs(t *testing.T) {
	var buf bytes.Buffer
	paths := []tracer.Path{
		{Functions: []string{"a", "b", "target"}},
		{Functions: []string{"a", "c", "target"}},
	}
	tree := tracer.BuildTree(paths)
	WriteTree(&buf, "target", tracer.Callers, tree, len(paths))

	out := buf.String()
	assert.Contains(t, out, "a\n")
	assert.Contains(t, out, "├── b")
	assert.Contains(t, out, "└── c")
	assert.Contains(t, out, "Unique call chains found: 2")
}

func TestWriteChainsEmptyMessage(t *testing.T) {
	var callers, callees bytes.Buffer
	WriteChains(&callers, "target", tracer.Callers, nil)
	WriteChains(&callees, "target", tracer.Callees, nil)
	assert.Contains(t, callers.String(), "No caller paths found.")
	assert.Contains(t, callees.String(), "No callee paths found.")
}

func TestWriteChainsAnnotatesCycles(t *testing.T) {
	var buf bytes.Buffer
	WriteChains(&buf, "target", tracer.Callers, []tracer.Path{
		{Functions: []string{"f", "target"}, TruncatedByCycle: true},
	})
	assert.Contains(t, buf.String(), "f → target (cycle)")
}

func TestWriteUnprotectedAllClear(t *testing.T) {
	var buf bytes.Buffer
	WriteUnprotected(&buf, "my_function", locks.ParseFilter("spin"), nil)
	assert.Contains(t, buf.String(), "All call paths are properly protected")
}
