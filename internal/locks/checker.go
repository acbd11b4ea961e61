package locks

import "sort"

// Result is the per-path protection verdict.
type Result struct {
	Context   Context
	Protected bool
	// Missing lists the required tokens no held lock satisfied.
	Missing []string
}

// Check evaluates a held-lock set against required filter tokens. Every
// token must be satisfied by at least one held lock (AND across tokens);
// any concrete lock matching a token satisfies it (OR within a token).
func Check(held map[string]Class, required Filter) (bool, []string) {
	var missing []string
	for _, t := range required.tokens {
		ok := false
		for name, class := range held {
			if t.matches(name, class) {
				ok = true
				break
			}
		}
		if !ok {
			missing = append(missing, t.raw)
		}
	}
	return len(missing) == 0, missing
}

// CheckAll evaluates every chain context against required.
func CheckAll(ctxs []Context, required Filter) []Result {
	out := make([]Result, 0, len(ctxs))
	for _, c := range ctxs {
		protected, missing := Check(c.Held, required)
		out = append(out, Result{Context: c, Protected: protected, Missing: missing})
	}
	return out
}

// Summary aggregates lock context over all chains reaching a function.
type Summary struct {
	Paths       int
	Protected   int
	Unprotected int
	Locks       []string
}

// Summarize counts protected chains (anything held at the target) and
// collects the distinct lock names encountered.
func Summarize(ctxs []Context) Summary {
	s := Summary{Paths: len(ctxs)}
	seen := make(map[string]bool)
	for _, c := range ctxs {
		if len(c.Held) > 0 {
			s.Protected++
		} else {
			s.Unprotected++
		}
		for name := range c.Held {
			if !seen[name] {
				seen[name] = true
				s.Locks = append(s.Locks, name)
			}
		}
	}
	sort.Strings(s.Locks)
	return s
}
