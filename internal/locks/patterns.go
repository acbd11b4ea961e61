// Package locks implements the textual lock model: extracting ordered
// lock operations from C function bodies, propagating held-lock state
// along call chains, and checking that state against required-lock
// specifications.
//
// The model is an intra-procedural pattern scan, not a verified static
// analysis; it can mis-judge indirect calls, macros, and conditional
// lock paths.
package locks

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Class groups lock primitives sharing an acquire/release shape.
type Class string

const (
	ClassSpinlock  Class = "spinlock"
	ClassMutex     Class = "mutex"
	ClassRWLock    Class = "rwlock"
	ClassRCU       Class = "rcu"
	ClassSemaphore Class = "semaphore"
	ClassCustom    Class = "custom"
)

// Action is the direction of a lock operation.
type Action string

const (
	ActionAcquire Action = "acquire"
	ActionRelease Action = "release"
)

// patternRow pairs the acquire and release shapes of one lock class.
// Adding a lock family means adding a row, not a new code path. The
// first capture group of each pattern is the concrete lock identifier;
// patterns without a group use the whole match.
type patternRow struct {
	class   Class
	acquire *regexp.Regexp
	release *regexp.Regexp
}

// Registry holds the lock-class pattern table. Rows are tried in order;
// when two rows match the same column of a line, the earlier row wins,
// so the loose custom row never claims an identifier a specific class
// recognizes.
type Registry struct {
	rows []patternRow
}

// RE2 has no negative lookbehind, so the rwlock patterns rely on \b:
// "_" is a word character, which keeps \bread_lock from matching inside
// rcu_read_lock.
func DefaultRegistry() *Registry {
	return &Registry{rows: []patternRow{
		{
			class:   ClassSpinlock,
			acquire: regexp.MustCompile(`\b(spin_lock(?:_irqsave|_irq|_bh)?)\s*\(`),
			release: regexp.MustCompile(`\b(spin_unlock(?:_irqrestore|_irq|_bh)?)\s*\(`),
		},
		{
			class:   ClassMutex,
			acquire: regexp.MustCompile(`\b(mutex_lock(?:_interruptible)?|mutex_trylock)\s*\(`),
			release: regexp.MustCompile(`\b(mutex_unlock)\s*\(`),
		},
		{
			class:   ClassRWLock,
			acquire: regexp.MustCompile(`\b((?:read|write)_lock(?:_irqsave|_irq|_bh)?)\s*\(`),
			release: regexp.MustCompile(`\b((?:read|write)_unlock(?:_irqrestore|_irq|_bh)?)\s*\(`),
		},
		{
			class:   ClassRCU,
			acquire: regexp.MustCompile(`\b(rcu_read_lock(?:_bh)?)\s*\(`),
			release: regexp.MustCompile(`\b(rcu_read_unlock(?:_bh)?)\s*\(`),
		},
		{
			class:   ClassSemaphore,
			acquire: regexp.MustCompile(`\b(down(?:_interruptible|_killable|_trylock)?)\s*\(`),
			release: regexp.MustCompile(`\b(up)\s*\(`),
		},
		// Kernel lock families whose identifiers the loose fallback below
		// cannot see: trylock acquires, _ops suffixes, grab/ungrab naming.
		{
			class:   ClassCustom,
			acquire: regexp.MustCompile(`\b(rtnl_lock|rtnl_trylock|rtnl_net_lock)\s*\(`),
			release: regexp.MustCompile(`\b(rtnl_unlock|rtnl_net_unlock)\s*\(`),
		},
		{
			class:   ClassCustom,
			acquire: regexp.MustCompile(`\b(netdev_lock(?:_ops)?)\s*\(`),
			release: regexp.MustCompile(`\b(netdev_unlock(?:_ops)?)\s*\(`),
		},
		{
			class:   ClassCustom,
			acquire: regexp.MustCompile(`\b(netlink_table_grab)\s*\(`),
			release: regexp.MustCompile(`\b(netlink_table_ungrab)\s*\(`),
		},
		{
			class:   ClassCustom,
			acquire: regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*_lock)\s*\(`),
			release: regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*_unlock)\s*\(`),
		},
	}}
}

// patternFile is the on-disk shape of a --lock-patterns file:
//
//	[[pattern]]
//	class = "custom"
//	acquire = '\b(netlink_table_grab)\s*\('
//	release = '\b(netlink_table_ungrab)\s*\('
type patternFile struct {
	Pattern []struct {
		Class   string `toml:"class"`
		Acquire string `toml:"acquire"`
		Release string `toml:"release"`
	} `toml:"pattern"`
}

// LoadPatterns merges user-supplied pattern rows from a TOML file into
// the registry. User rows are inserted before the loose custom fallback
// so they take precedence over it.
func (r *Registry) LoadPatterns(path string) error {
	var pf patternFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return fmt.Errorf("lock patterns %s: %w", path, err)
	}
	var rows []patternRow
	for i, p := range pf.Pattern {
		class := Class(p.Class)
		switch class {
		case ClassSpinlock, ClassMutex, ClassRWLock, ClassRCU, ClassSemaphore, ClassCustom:
		default:
			return fmt.Errorf("lock patterns %s: pattern %d: unknown class %q", path, i+1, p.Class)
		}
		acq, err := regexp.Compile(p.Acquire)
		if err != nil {
			return fmt.Errorf("lock patterns %s: pattern %d acquire: %w", path, i+1, err)
		}
		rel, err := regexp.Compile(p.Release)
		if err != nil {
			return fmt.Errorf("lock patterns %s: pattern %d release: %w", path, i+1, err)
		}
		rows = append(rows, patternRow{class: class, acquire: acq, release: rel})
	}

	last := len(r.rows) - 1
	merged := make([]patternRow, 0, len(r.rows)+len(rows))
	merged = append(merged, r.rows[:last]...)
	merged = append(merged, rows...)
	merged = append(merged, r.rows[last])
	r.rows = merged
	return nil
}

// lineMatch is one pattern hit within a single source line.
type lineMatch struct {
	col    int
	name   string
	class  Class
	action Action
}

// matchLine finds every lock operation on a line, ordered by column.
// Overlapping hits at the same column are resolved in row order.
func (r *Registry) matchLine(line string) []lineMatch {
	claimed := make(map[int]bool)
	var matches []lineMatch
	for _, row := range r.rows {
		for _, m := range findNamed(row.acquire, line) {
			if !claimed[m.col] {
				claimed[m.col] = true
				matches = append(matches, lineMatch{m.col, m.name, row.class, ActionAcquire})
			}
		}
		for _, m := range findNamed(row.release, line) {
			if !claimed[m.col] {
				claimed[m.col] = true
				matches = append(matches, lineMatch{m.col, m.name, row.class, ActionRelease})
			}
		}
	}
	// Insertion sort by column; lines carry at most a handful of ops.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1].col > matches[j].col; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
	return matches
}

type namedMatch struct {
	col  int
	name string
}

func findNamed(re *regexp.Regexp, line string) []namedMatch {
	var out []namedMatch
	for _, idx := range re.FindAllStringSubmatchIndex(line, -1) {
		start, end := idx[0], idx[1]
		if len(idx) >= 4 && idx[2] >= 0 {
			start, end = idx[2], idx[3]
		}
		out = append(out, namedMatch{col: start, name: line[start:end]})
	}
	return out
}

// acquireName maps a release identifier to the acquire identifier it
// balances, so the held-set fold can pair them: spin_unlock_bh releases
// spin_lock_bh, up releases down, netlink_table_ungrab releases
// netlink_table_grab, foo_unlock releases foo_lock. Variant mismatches
// (mutex_trylock vs mutex_unlock, down_interruptible vs up) are a known
// imprecision of the textual model.
func acquireName(name string, class Class, action Action) string {
	if action != ActionRelease {
		return name
	}
	if class == ClassSemaphore {
		return "down"
	}
	n := strings.Replace(name, "unlock", "lock", 1)
	n = strings.Replace(n, "ungrab", "grab", 1)
	return strings.Replace(n, "_irqrestore", "_irqsave", 1)
}
