package tracer

import "strings"

// Dedupe collapses chains whose function-name sequences are identical
// position for position, keeping the first occurrence of each.
// Call-site metadata plays no part in equality. The verbose display
// mode bypasses this and reports raw enumerator output.
func Dedupe(paths []Path) []Path {
	seen := make(map[string]bool, len(paths))
	unique := make([]Path, 0, len(paths))
	for _, p := range paths {
		key := strings.Join(p.Functions, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	return unique
}
