package hierarchy

// BuildAscendantHierarchy returns the root of the scope hierarchy enclosing
// node, or nil if node exposes no scope.
//
// The chain from node's scope to the outermost scope must be finite.
func BuildAscendantHierarchy(node any) *Node {
	scope := scopeOf(node)
	if scope == nil {
		return nil
	}

	// Innermost first.
	var chain []*Node
	for s := scope; s != nil; s = s.Parent() {
		item := NewNode(ScopePayload{Scope: s})
		for _, d := range s.Declarations() {
			item.Append(NewNode(DeclarationPayload{Declaration: d}))
		}
		chain = append(chain, item)
	}

	for i := 0; i+1 < len(chain); i++ {
		chain[i+1].Append(chain[i])
	}
	return chain[len(chain)-1]
}

func scopeOf(node any) LexicalScope {
	s, ok := node.(Scoped)
	if !ok {
		return nil
	}
	return s.Scope()
}
