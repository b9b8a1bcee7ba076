// Package symtab is an in-memory symbol table of lexical scopes, the names
// declared in them and the places those names are used.
package symtab

import (
	"fmt"

	"github.com/jward/scopetree/hierarchy"
)

// Position is a 0-based line and column.
type Position struct {
	Line int
	Col  int
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

// Span is a source range; End is exclusive.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls inside s.
func (s Span) Contains(pos Position) bool {
	return !pos.Before(s.Start) && pos.Before(s.End)
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Col, s.End.Line, s.End.Col)
}

// NameDeclaration is an identifier declared within a scope.
type NameDeclaration struct {
	ID   int64
	Name string
	Kind string
	Span Span
}

// String returns the declared name.
func (d *NameDeclaration) String() string { return d.Name }

// NameOccurrence is a use of a name.
type NameOccurrence struct {
	ID   int64
	Name string
	Span Span
}

func (o *NameOccurrence) String() string { return o.Name }

// Entry is one row of a scope's declaration table.
type Entry struct {
	Declaration *NameDeclaration
	Occurrences []*NameOccurrence
}

// Scope is a lexical region with its own declaration table. Declaration
// names are unique within a scope and keep insertion order.
type Scope struct {
	ID   int64
	Kind string
	Name string
	Span Span

	parent *Scope
	table  []*Entry
	byName map[string]int
}

// NewScope returns an empty scope nested in parent (nil for the outermost
// scope).
func NewScope(kind, name string, span Span, parent *Scope) *Scope {
	return &Scope{
		Kind:   kind,
		Name:   name,
		Span:   span,
		parent: parent,
		byName: make(map[string]int),
	}
}

// String renders as "<kind> <name>", or just the kind when unnamed.
func (s *Scope) String() string {
	if s.Name == "" {
		return s.Kind
	}
	return s.Kind + " " + s.Name
}

// Parent returns the enclosing scope. The nil check keeps a nil *Scope from
// reaching callers as a non-nil interface.
func (s *Scope) Parent() hierarchy.LexicalScope {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

// Enclosing returns the enclosing scope as a *Scope.
func (s *Scope) Enclosing() *Scope { return s.parent }

// Declare adds d to the table. If the name is already declared here the
// existing declaration is returned and d is discarded.
func (s *Scope) Declare(d *NameDeclaration) (*NameDeclaration, bool) {
	if i, ok := s.byName[d.Name]; ok {
		return s.table[i].Declaration, false
	}
	s.byName[d.Name] = len(s.table)
	s.table = append(s.table, &Entry{Declaration: d})
	return d, true
}

// AddOccurrence records o as a use of d. It returns false if d is not
// declared in s.
func (s *Scope) AddOccurrence(d *NameDeclaration, o *NameOccurrence) bool {
	i, ok := s.byName[d.Name]
	if !ok || s.table[i].Declaration != d {
		return false
	}
	s.table[i].Occurrences = append(s.table[i].Occurrences, o)
	return true
}

// Occurrences returns the recorded uses of d in table order.
func (s *Scope) Occurrences(d *NameDeclaration) []*NameOccurrence {
	if i, ok := s.byName[d.Name]; ok && s.table[i].Declaration == d {
		return s.table[i].Occurrences
	}
	return nil
}

// Table returns the declaration table in insertion order.
func (s *Scope) Table() []*Entry { return s.table }

// Declarations returns the table keys for hierarchy building.
func (s *Scope) Declarations() []hierarchy.NameDeclaration {
	out := make([]hierarchy.NameDeclaration, len(s.table))
	for i, e := range s.table {
		out[i] = e.Declaration
	}
	return out
}

// Declared returns the declaration of name in s itself, if any.
func (s *Scope) Declared(name string) *NameDeclaration {
	if i, ok := s.byName[name]; ok {
		return s.table[i].Declaration
	}
	return nil
}

// Lookup resolves name through s and its ancestors, returning the declaring
// scope and the declaration.
func (s *Scope) Lookup(name string) (*Scope, *NameDeclaration) {
	for c := s; c != nil; c = c.parent {
		if d := c.Declared(name); d != nil {
			return c, d
		}
	}
	return nil, nil
}

// Chain returns s and its ancestors, innermost first.
func (s *Scope) Chain() []*Scope {
	var out []*Scope
	for c := s; c != nil; c = c.parent {
		out = append(out, c)
	}
	return out
}

// Contains reports whether pos is inside the scope's span.
func (s *Scope) Contains(pos Position) bool { return s.Span.Contains(pos) }
