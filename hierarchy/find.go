package hierarchy

import "math"

// TryFindNode searches n and its descendants, depth-first and left to right,
// for the first node whose label equals the textual form of searched.
//
// The budget is checked before any comparison: a nil searched value or a
// maxDepth of zero yields nil even when n itself would match. Each level
// below n consumes one unit, so a node k edges below n is reachable only
// when maxDepth > k. A negative maxDepth never runs out and searches the
// whole subtree.
func (n *Node) TryFindNode(searched any, maxDepth int) *Node {
	if maxDepth == 0 {
		return nil
	}
	want, ok := renderSearched(searched)
	if !ok {
		return nil
	}
	if maxDepth < 0 {
		maxDepth = math.MaxInt
	}
	return n.find(want, maxDepth, 1)
}

// FindNode is TryFindNode with levels counting edges below n: n itself is
// always compared, and a node k edges below n is reachable when
// levels >= k. A nil searched value or negative levels yields nil.
func (n *Node) FindNode(searched any, levels int) *Node {
	if levels < 0 {
		return nil
	}
	want, ok := renderSearched(searched)
	if !ok {
		return nil
	}
	return n.find(want, levels, 0)
}

// find compares n against want, then descends while budget > floor.
func (n *Node) find(want string, budget, floor int) *Node {
	if n.Label() == want {
		return n
	}
	if budget <= floor {
		return nil
	}
	for _, c := range n.children {
		if found := c.find(want, budget-1, floor); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node within levels edges of n whose label equals the
// textual form of searched, in depth-first pre-order.
func (n *Node) FindAll(searched any, levels int) []*Node {
	want, ok := renderSearched(searched)
	if !ok {
		return nil
	}
	var out []*Node
	var visit func(c *Node, left int)
	visit = func(c *Node, left int) {
		if c.Label() == want {
			out = append(out, c)
		}
		if left == 0 {
			return
		}
		for _, cc := range c.children {
			visit(cc, left-1)
		}
	}
	if levels >= 0 {
		visit(n, levels)
	}
	return out
}
