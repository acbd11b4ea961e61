package locks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilterClassTokens(t *testing.T) {
	tests := []struct {
		token string
		lock  string
		class Class
		want  bool
	}{
		{"spin", "spin_lock_bh", ClassSpinlock, true},
		{"spinlock", "spin_lock", ClassSpinlock, true},
		{"spin", "mutex_lock", ClassMutex, false},
		{"mutex", "mutex_lock_interruptible", ClassMutex, true},
		{"rcu", "rcu_read_lock", ClassRCU, true},
		{"rcu_lock", "rcu_read_lock_bh", ClassRCU, true},
		{"rwlock", "write_lock_irq", ClassRWLock, true},
		{"sem", "down_interruptible", ClassSemaphore, true},
	}
	for _, tc := range tests {
		f := ParseFilter(tc.token)
		assert.Equal(t, tc.want, f.Matches(tc.lock, tc.class),
			"token=%s lock=%s", tc.token, tc.lock)
	}
}

func TestParseFilterExactName(t *testing.T) {
	f := ParseFilter("rcu_read_lock")
	assert.True(t, f.Matches("rcu_read_lock", ClassRCU))
	assert.False(t, f.Matches("rcu_read_lock_bh", ClassRCU))

	// Unrecognized tokens fall back to exact matching.
	f = ParseFilter("my_private_lock")
	assert.True(t, f.Matches("my_private_lock", ClassCustom))
	assert.False(t, f.Matches("my_other_lock", ClassCustom))
}

func TestParseFilterFamilyTokens(t *testing.T) {
	f := ParseFilter("rtnl")
	assert.True(t, f.Matches("rtnl_lock", ClassCustom))
	assert.True(t, f.Matches("rtnl_net_lock", ClassCustom))
	assert.True(t, f.Matches("rtnl_trylock", ClassCustom))
	assert.False(t, f.Matches("netdev_lock", ClassCustom))

	f = ParseFilter("netdev")
	assert.True(t, f.Matches("netdev_lock", ClassCustom))
	assert.True(t, f.Matches("netdev_lock_ops", ClassCustom))

	f = ParseFilter("netlink")
	assert.True(t, f.Matches("netlink_table_grab", ClassCustom))
}

func TestParseFilterMixedList(t *testing.T) {
	f := ParseFilter("spin, rcu_read_lock")
	assert.Equal(t, []string{"spin", "rcu_read_lock"}, f.Tokens())
	assert.True(t, f.Matches("spin_lock_irqsave", ClassSpinlock))
	assert.True(t, f.Matches("rcu_read_lock", ClassRCU))
	assert.False(t, f.Matches("mutex_lock", ClassMutex))
}

func TestParseFilterEmpty(t *testing.T) {
	assert.True(t, ParseFilter("").Empty())
	assert.True(t, ParseFilter(" , ,").Empty())
	assert.False(t, ParseFilter("spin").Empty())
}
