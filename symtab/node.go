package symtab

import "github.com/jward/scopetree/hierarchy"

// Node is a handle on a source position, optionally tied to the scope that
// encloses it.
type Node struct {
	File  string
	Span  Span
	scope *Scope
}

// Scoped returns a node enclosed by scope.
func Scoped(file string, span Span, scope *Scope) *Node {
	return &Node{File: file, Span: span, scope: scope}
}

// Unscoped returns a node with no associated scope.
func Unscoped(file string, span Span) *Node {
	return &Node{File: file, Span: span}
}

// Scope returns the enclosing scope, or nil when the node has none.
func (n *Node) Scope() hierarchy.LexicalScope {
	if n == nil || n.scope == nil {
		return nil
	}
	return n.scope
}

// EnclosingScope returns the enclosing scope as a *Scope.
func (n *Node) EnclosingScope() *Scope {
	if n == nil {
		return nil
	}
	return n.scope
}

var (
	_ hierarchy.Scoped       = (*Node)(nil)
	_ hierarchy.LexicalScope = (*Scope)(nil)
)
