package tracer

// Node is one function in a call tree. Children are keyed by function
// name and preserve first-appearance order.
type Node struct {
	Name string
	// Terminus marks the end of at least one input chain.
	Terminus bool
	// Truncated marks that a chain ending here was cut by cycle
	// detection rather than reaching a natural root/leaf.
	Truncated bool

	children map[string]*Node
	order    []string
}

func newNode(name string) *Node {
	return &Node{Name: name, children: make(map[string]*Node)}
}

// Children returns the node's children in first-appearance order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

// Tree is a rooted forest merging a deduplicated chain set by shared
// prefix. It is never mutated after construction.
type Tree struct {
	root *Node
}

// BuildTree merges chains into a prefix tree. Two chains sharing a
// prefix produce a single shared branch, splitting only at the first
// diverging function. Sibling order is first appearance across the
// input list.
func BuildTree(paths []Path) *Tree {
	t := &Tree{root: newNode("")}
	for _, p := range paths {
		cur := t.root
		for i, fn := range p.Functions {
			child := cur.children[fn]
			if child == nil {
				child = newNode(fn)
				cur.children[fn] = child
				cur.order = append(cur.order, fn)
			}
			if i == len(p.Functions)-1 {
				child.Terminus = true
				if p.TruncatedByCycle {
					child.Truncated = true
				}
			}
			cur = child
		}
	}
	return t
}

// Roots returns the top-level nodes in first-appearance order.
func (t *Tree) Roots() []*Node {
	return t.root.Children()
}

// Paths re-enumerates every root-to-terminus chain in the tree. For a
// tree built from a deduplicated set this recovers that set exactly.
func (t *Tree) Paths() []Path {
	var out []Path
	var walk func(n *Node, chain []string)
	walk = func(n *Node, chain []string) {
		chain = append(chain, n.Name)
		if n.Terminus {
			fns := make([]string, len(chain))
			copy(fns, chain)
			out = append(out, Path{Functions: fns, TruncatedByCycle: n.Truncated})
		}
		for _, c := range n.Children() {
			walk(c, chain)
		}
	}
	for _, r := range t.Roots() {
		walk(r, nil)
	}
	return out
}
