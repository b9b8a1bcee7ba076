package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_DeclareKeepsFirstAndOrder(t *testing.T) {
	t.Parallel()
	s := NewScope("function", "f", Span{}, nil)

	a, ok := s.Declare(&NameDeclaration{Name: "a", Kind: "parameter"})
	require.True(t, ok)
	_, ok = s.Declare(&NameDeclaration{Name: "b"})
	require.True(t, ok)
	again, ok := s.Declare(&NameDeclaration{Name: "a", Kind: "variable"})
	assert.False(t, ok)
	assert.Same(t, a, again)

	var names []string
	for _, e := range s.Table() {
		names = append(names, e.Declaration.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Len(t, s.Declarations(), 2)
	assert.Equal(t, "parameter", s.Declared("a").Kind)
}

func TestScope_Occurrences(t *testing.T) {
	t.Parallel()
	s := NewScope("block", "", Span{}, nil)
	d, _ := s.Declare(&NameDeclaration{Name: "n"})
	o1 := &NameOccurrence{Name: "n", Span: Span{Start: Position{1, 0}}}
	o2 := &NameOccurrence{Name: "n", Span: Span{Start: Position{2, 0}}}

	assert.True(t, s.AddOccurrence(d, o1))
	assert.True(t, s.AddOccurrence(d, o2))
	assert.Equal(t, []*NameOccurrence{o1, o2}, s.Occurrences(d))

	foreign := &NameDeclaration{Name: "n"}
	assert.False(t, s.AddOccurrence(foreign, o1))
	assert.Nil(t, s.Occurrences(foreign))
}

func TestScope_LookupThroughChain(t *testing.T) {
	t.Parallel()
	file := NewScope("file", "main.go", Span{}, nil)
	fn := NewScope("function", "main", Span{}, file)
	blk := NewScope("block", "", Span{}, fn)

	file.Declare(&NameDeclaration{Name: "x", Kind: "variable"})
	shadow, _ := fn.Declare(&NameDeclaration{Name: "x", Kind: "parameter"})

	where, d := blk.Lookup("x")
	assert.Same(t, fn, where)
	assert.Same(t, shadow, d)

	where, d = blk.Lookup("missing")
	assert.Nil(t, where)
	assert.Nil(t, d)

	assert.Equal(t, []*Scope{blk, fn, file}, blk.Chain())
}

func TestScope_ParentReturnsUntypedNil(t *testing.T) {
	t.Parallel()
	root := NewScope("file", "", Span{}, nil)
	assert.True(t, root.Parent() == nil)

	child := NewScope("block", "", Span{}, root)
	assert.Equal(t, root, child.Parent())
	assert.Same(t, root, child.Enclosing())
}

func TestScope_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "function main", NewScope("function", "main", Span{}, nil).String())
	assert.Equal(t, "block", NewScope("block", "", Span{}, nil).String())
}

func TestSpan_Contains(t *testing.T) {
	t.Parallel()
	s := Span{Start: Position{2, 4}, End: Position{5, 1}}
	tests := []struct {
		pos  Position
		want bool
	}{
		{Position{2, 4}, true},
		{Position{2, 3}, false},
		{Position{3, 0}, true},
		{Position{5, 0}, true},
		{Position{5, 1}, false},
		{Position{6, 0}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Contains(tt.pos), "%v", tt.pos)
	}
	assert.Equal(t, "2:4-5:1", s.String())
}

func TestNode_Scope(t *testing.T) {
	t.Parallel()
	s := NewScope("file", "", Span{}, nil)

	assert.Nil(t, Unscoped("f", Span{}).Scope())
	assert.True(t, Unscoped("f", Span{}).Scope() == nil)
	assert.Equal(t, s, Scoped("f", Span{}, s).Scope())

	var n *Node
	assert.True(t, n.Scope() == nil)
	assert.Nil(t, n.EnclosingScope())
}
