package hierarchy

import "fmt"

// NameDeclaration is a name declared in a lexical scope. Its String form is
// the text that TryFindNode and FindNode match against.
type NameDeclaration interface {
	fmt.Stringer
}

// LexicalScope is a region of source with its own declaration table and at
// most one enclosing scope.
type LexicalScope interface {
	fmt.Stringer

	// Parent returns the enclosing scope, or nil for the outermost scope.
	// Implementations must return an untyped nil, not a nil pointer wrapped
	// in the interface.
	Parent() LexicalScope

	// Declarations returns the keys of the scope's declaration table in
	// table order.
	Declarations() []NameDeclaration
}

// Scoped is implemented by source nodes that carry a lexical scope. A node
// that does not implement Scoped, or whose Scope returns nil, is not scoped.
type Scoped interface {
	Scope() LexicalScope
}

// Payload is the value wrapped by a Node. It is either a ScopePayload or a
// DeclarationPayload.
type Payload interface {
	// Label is the textual form of the payload.
	Label() string
	isPayload()
}

// ScopePayload wraps a scope. Its label is the scope's String.
type ScopePayload struct {
	Scope LexicalScope
}

func (p ScopePayload) Label() string { return p.Scope.String() }
func (ScopePayload) isPayload()      {}

// DeclarationPayload wraps a declaration. Its label is the declaration's
// String, which for symtab declarations is the declared name.
type DeclarationPayload struct {
	Declaration NameDeclaration
}

func (p DeclarationPayload) Label() string { return p.Declaration.String() }
func (DeclarationPayload) isPayload()      {}

// Render returns the textual form of v used when searching a tree. A value
// that cannot produce one, such as a nil pointer behind an interface,
// renders as "".
func Render(v any) string {
	s, _ := renderSearched(v)
	return s
}

// renderSearched is Render that also reports whether v has a textual form.
// A typed nil pointer passes a v == nil check and may panic in String, so
// the call is recovered.
func renderSearched(v any) (s string, ok bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case *Node:
		if x == nil {
			return "", false
		}
		return stringOf(x.Label)
	case Payload:
		return stringOf(x.Label)
	case string:
		return x, true
	case fmt.Stringer:
		return stringOf(x.String)
	default:
		return fmt.Sprint(v), true
	}
}

func stringOf(fn func() string) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	return fn(), true
}
