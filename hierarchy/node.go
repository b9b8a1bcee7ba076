// Package hierarchy projects the ancestry of lexical scopes into a tree of
// display nodes and searches that tree by textual value.
//
// A tree built by BuildAscendantHierarchy has the outermost scope at its
// root. Every scope node lists the scope's declarations as children, in
// declaration-table order, followed by the node of the next inner scope.
// The deepest scope node is the scope that directly encloses the queried
// source node.
//
// Nodes own their children. The parent link is a back-reference only and is
// never followed when the tree is released.
package hierarchy

// Node is a tree node wrapping one Payload.
type Node struct {
	payload  Payload
	children []*Node
	parent   *Node
	expanded bool
}

// NewNode returns a detached, expanded node wrapping p.
func NewNode(p Payload) *Node {
	return &Node{payload: p, expanded: true}
}

// Payload returns the wrapped value.
func (n *Node) Payload() Payload { return n.payload }

// Label returns the textual form of the payload.
func (n *Node) Label() string { return n.payload.Label() }

// Children returns the node's children in order. The slice must not be
// modified.
func (n *Node) Children() []*Node { return n.children }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Expanded reports the display flag. New nodes are expanded.
func (n *Node) Expanded() bool { return n.expanded }

// SetExpanded sets the display flag.
func (n *Node) SetExpanded(v bool) { n.expanded = v }

// IsScope reports whether the node wraps a scope.
func (n *Node) IsScope() bool {
	_, ok := n.payload.(ScopePayload)
	return ok
}

// Append attaches child as the last child of n. A child that already has a
// parent is detached from it first.
func (n *Node) Append(child *Node) {
	if child.parent != nil {
		child.parent.remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

func (n *Node) remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Root follows parent links to the root of the tree containing n.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Depth is the number of edges between n and its root.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Height is the number of edges on the longest downward path from n.
func (n *Node) Height() int {
	h := 0
	for _, c := range n.children {
		if ch := c.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}

// Walk visits n and its descendants in depth-first pre-order. Returning
// false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Len returns the number of nodes in the subtree rooted at n.
func (n *Node) Len() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Path returns the labels from the root down to n.
func (n *Node) Path() []string {
	var path []string
	for c := n; c != nil; c = c.parent {
		path = append(path, c.Label())
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Innermost returns the deepest scope node reachable from n by following
// scope children, which for a built hierarchy is the scope enclosing the
// queried source node.
func (n *Node) Innermost() *Node {
	cur := n
	for {
		var next *Node
		for _, c := range cur.children {
			if c.IsScope() {
				next = c
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// ExpandAll sets every node in the subtree to expanded.
func (n *Node) ExpandAll() { n.setAll(true) }

// CollapseAll sets every node in the subtree to collapsed.
func (n *Node) CollapseAll() { n.setAll(false) }

func (n *Node) setAll(v bool) {
	n.Walk(func(c *Node) bool {
		c.expanded = v
		return true
	})
}
