package locks

import "strings"

// classTokens maps user-facing generic filter tokens to the lock class
// they stand for. A token of a class matches any concrete lock of that
// class regardless of exact identifier.
var classTokens = map[string]Class{
	"spin":      ClassSpinlock,
	"spinlock":  ClassSpinlock,
	"spin_lock": ClassSpinlock,

	"mutex":      ClassMutex,
	"mutex_lock": ClassMutex,

	"rwlock":  ClassRWLock,
	"rw_lock": ClassRWLock,

	"rcu":      ClassRCU,
	"rcu_lock": ClassRCU,

	"semaphore": ClassSemaphore,
	"sem":       ClassSemaphore,
}

// familyTokens maps tokens for well-known custom lock families to the
// identifier prefix they cover, so "rtnl" matches rtnl_lock,
// rtnl_net_lock and friends without claiming every custom lock.
var familyTokens = map[string]string{
	"rtnl":        "rtnl",
	"rtnl_lock":   "rtnl",
	"netdev":      "netdev_",
	"netdev_lock": "netdev_",
	"netlink":     "netlink_",
	"genl":        "genl_",
}

type token struct {
	raw    string
	class  Class
	prefix string
	exact  bool
}

func (t token) matches(lock string, class Class) bool {
	switch {
	case t.exact:
		return lock == t.raw
	case t.prefix != "":
		return strings.HasPrefix(lock, t.prefix)
	default:
		return class == t.class
	}
}

// Filter is a parsed lock filter list. Each comma-separated token is
// resolved independently: generic class tokens, custom family tokens,
// then exact-name fallback for anything unrecognized.
type Filter struct {
	tokens []token
}

// ParseFilter splits a comma-separated lock list into match tokens. An
// empty spec yields an empty filter that matches everything.
func ParseFilter(spec string) Filter {
	var f Filter
	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if class, ok := classTokens[strings.ToLower(raw)]; ok {
			f.tokens = append(f.tokens, token{raw: raw, class: class})
			continue
		}
		if prefix, ok := familyTokens[strings.ToLower(raw)]; ok {
			f.tokens = append(f.tokens, token{raw: raw, prefix: prefix})
			continue
		}
		f.tokens = append(f.tokens, token{raw: raw, exact: true})
	}
	return f
}

// Empty reports whether the filter has no tokens.
func (f Filter) Empty() bool { return len(f.tokens) == 0 }

// Tokens returns the raw tokens in input order.
func (f Filter) Tokens() []string {
	out := make([]string, len(f.tokens))
	for i, t := range f.tokens {
		out[i] = t.raw
	}
	return out
}

// Matches reports whether any token matches the given concrete lock.
func (f Filter) Matches(lock string, class Class) bool {
	for _, t := range f.tokens {
		if t.matches(lock, class) {
			return true
		}
	}
	return false
}
