package locks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
)

// fakeSource is an in-memory edge source for lock tests.
type fakeSource struct {
	callees map[string][]cscope.Call
	defs    map[string]cscope.Def
}

func (f *fakeSource) Callers(_ context.Context, fn string) ([]cscope.Call, error) {
	return nil, fmt.Errorf("%q: %w", fn, cscope.ErrNotFound)
}

func (f *fakeSource) Callees(_ context.Context, fn string) ([]cscope.Call, error) {
	if _, ok := f.defs[fn]; !ok {
		return nil, fmt.Errorf("%q: %w", fn, cscope.ErrNotFound)
	}
	return f.callees[fn], nil
}

func (f *fakeSource) Definition(_ context.Context, fn string) (cscope.Def, error) {
	def, ok := f.defs[fn]
	if !ok {
		return cscope.Def{}, fmt.Errorf("%q: %w", fn, cscope.ErrNotFound)
	}
	return def, nil
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanLockClasses(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "locker.c", `#include <linux/spinlock.h>

static void locker(struct ctx *c)
{
	spin_lock_bh(&c->lock);
	mutex_lock(&c->m);
	rcu_read_lock();
	read_lock(&c->rw);
	rtnl_lock();
	down(&c->sem);
	up(&c->sem);
	rtnl_unlock();
	read_unlock(&c->rw);
	rcu_read_unlock();
	mutex_unlock(&c->m);
	spin_unlock_bh(&c->lock);
}

static void after(void)
{
	spin_lock(&elsewhere);
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{
		"locker": {File: "locker.c", Line: 3},
	}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "locker")
	require.NoError(t, err)
	assert.True(t, known)
	require.Len(t, ops, 12, "ops from the following function must not leak in")

	want := []struct {
		lock   string
		class  Class
		action Action
	}{
		{"spin_lock_bh", ClassSpinlock, ActionAcquire},
		{"mutex_lock", ClassMutex, ActionAcquire},
		{"rcu_read_lock", ClassRCU, ActionAcquire},
		{"read_lock", ClassRWLock, ActionAcquire},
		{"rtnl_lock", ClassCustom, ActionAcquire},
		{"down", ClassSemaphore, ActionAcquire},
		{"up", ClassSemaphore, ActionRelease},
		{"rtnl_unlock", ClassCustom, ActionRelease},
		{"read_unlock", ClassRWLock, ActionRelease},
		{"rcu_read_unlock", ClassRCU, ActionRelease},
		{"mutex_unlock", ClassMutex, ActionRelease},
		{"spin_unlock_bh", ClassSpinlock, ActionRelease},
	}
	for i, w := range want {
		assert.Equal(t, w.lock, ops[i].Lock, "op %d", i)
		assert.Equal(t, w.class, ops[i].Class, "op %d", i)
		assert.Equal(t, w.action, ops[i].Action, "op %d", i)
		assert.Equal(t, "locker", ops[i].Function, "op %d", i)
	}

	// Line numbers are absolute and strictly increasing here.
	assert.Equal(t, 5, ops[0].Line)
	assert.Equal(t, 16, ops[11].Line)
}

func TestScanRCUNotClaimedByRWLock(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "rcu.c", `void reader(void)
{
	rcu_read_lock();
	rcu_read_unlock();
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{"reader": {File: "rcu.c", Line: 1}}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "reader")
	require.NoError(t, err)
	assert.True(t, known)
	require.Len(t, ops, 2)
	assert.Equal(t, ClassRCU, ops[0].Class)
	assert.Equal(t, "rcu_read_lock", ops[0].Lock)
	assert.Equal(t, ClassRCU, ops[1].Class)
}

func TestScanCustomFallback(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "custom.c", `void grabber(void)
{
	genl_lock();
	my_private_lock(&st);
	my_private_unlock(&st);
	genl_unlock();
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{"grabber": {File: "custom.c", Line: 1}}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, _, err := s.Scan(context.Background(), "grabber")
	require.NoError(t, err)
	require.Len(t, ops, 4)
	for _, op := range ops {
		assert.Equal(t, ClassCustom, op.Class)
	}
	assert.Equal(t, "my_private_lock", ops[1].Lock)
}

func TestScanKernelLockFamilies(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "families.c", `void families(struct net_device *dev)
{
	rtnl_trylock();
	netdev_lock_ops(dev);
	netlink_table_grab();
	netlink_table_ungrab();
	netdev_unlock_ops(dev);
	rtnl_unlock();
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{"families": {File: "families.c", Line: 1}}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "families")
	require.NoError(t, err)
	assert.True(t, known)
	require.Len(t, ops, 6, "trylock/_ops/grab identifiers must all be recognized")

	want := []struct {
		lock   string
		action Action
	}{
		{"rtnl_trylock", ActionAcquire},
		{"netdev_lock_ops", ActionAcquire},
		{"netlink_table_grab", ActionAcquire},
		{"netlink_table_ungrab", ActionRelease},
		{"netdev_unlock_ops", ActionRelease},
		{"rtnl_unlock", ActionRelease},
	}
	for i, w := range want {
		assert.Equal(t, w.lock, ops[i].Lock, "op %d", i)
		assert.Equal(t, w.action, ops[i].Action, "op %d", i)
		assert.Equal(t, ClassCustom, ops[i].Class, "op %d", i)
	}
}

func TestScanMultipleOpsOneLine(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "oneline.c", `void busy(void)
{
	spin_lock(&a); spin_unlock(&a);
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{"busy": {File: "oneline.c", Line: 1}}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, _, err := s.Scan(context.Background(), "busy")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, ActionAcquire, ops[0].Action)
	assert.Equal(t, ActionRelease, ops[1].Action)
	assert.Equal(t, ops[0].Line, ops[1].Line)
}

func TestScanUnreadableSourceDegrades(t *testing.T) {
	src := &fakeSource{defs: map[string]cscope.Def{
		"ghost": {File: "does/not/exist.c", Line: 1},
	}}
	s := NewScanner(src, t.TempDir(), DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "ghost")
	require.NoError(t, err, "unreadable source is a degrade, not a failure")
	assert.False(t, known, "no lock info is distinct from no locks held")
	assert.Empty(t, ops)
}

func TestScanPrototypeDegrades(t *testing.T) {
	dir := t.TempDir()
	// The index points at a prototype; the real body below belongs to a
	// different function and must not be attributed to do_thing.
	writeSource(t, dir, "proto.c", `int do_thing(struct x *p);

static void other(void)
{
	spin_lock(&a);
	spin_unlock(&a);
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{
		"do_thing": {File: "proto.c", Line: 1},
	}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "do_thing")
	require.NoError(t, err)
	assert.False(t, known, "a body-less definition is a scan gap")
	assert.Empty(t, ops)
}

func TestScanBraceNeverOpensDegrades(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "stub.c", `DEFINE_HELPER(do_stub)
`)
	src := &fakeSource{defs: map[string]cscope.Def{
		"do_stub": {File: "stub.c", Line: 1},
	}}
	s := NewScanner(src, dir, DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "do_stub")
	require.NoError(t, err)
	assert.False(t, known)
	assert.Empty(t, ops)
}

func TestScanUnknownFunctionDegrades(t *testing.T) {
	s := NewScanner(&fakeSource{defs: map[string]cscope.Def{}}, t.TempDir(), DefaultRegistry())

	ops, known, err := s.Scan(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, known)
	assert.Empty(t, ops)
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()
	patterns := filepath.Join(dir, "patterns.toml")
	require.NoError(t, os.WriteFile(patterns, []byte(`
[[pattern]]
class = "custom"
acquire = '\b(netlink_table_grab)\s*\('
release = '\b(netlink_table_ungrab)\s*\('
`), 0o644))

	reg := DefaultRegistry()
	require.NoError(t, reg.LoadPatterns(patterns))

	writeSource(t, dir, "netlink.c", `void tbl(void)
{
	netlink_table_grab();
	netlink_table_ungrab();
}
`)
	src := &fakeSource{defs: map[string]cscope.Def{"tbl": {File: "netlink.c", Line: 1}}}
	s := NewScanner(src, dir, reg)

	ops, _, err := s.Scan(context.Background(), "tbl")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "netlink_table_grab", ops[0].Lock)
	assert.Equal(t, ActionAcquire, ops[0].Action)
	assert.Equal(t, ActionRelease, ops[1].Action)
}

func TestLoadPatternsRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad-class.toml")
	require.NoError(t, os.WriteFile(bad, []byte(`
[[pattern]]
class = "futex"
acquire = 'a'
release = 'b'
`), 0o644))
	assert.Error(t, DefaultRegistry().LoadPatterns(bad))

	badRE := filepath.Join(dir, "bad-re.toml")
	require.NoError(t, os.WriteFile(badRE, []byte(`
[[pattern]]
class = "custom"
acquire = '['
release = 'b'
`), 0o644))
	assert.Error(t, DefaultRegistry().LoadPatterns(badRE))
}
