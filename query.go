package scopetree

import (
	"fmt"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/jward/scopetree/hierarchy"
	"github.com/jward/scopetree/internal/store"
	"github.com/jward/scopetree/symtab"
)

// QueryBuilder reads scope data back out of the Store.
type QueryBuilder struct {
	store *store.Store
}

// ScopeAt returns the innermost scope enclosing (line, col) in file, loaded
// with its ancestors. Each scope's declarations are in table order with
// their occurrences attached. Returns nil when the file is not indexed or no
// scope contains the position.
func (q *QueryBuilder) ScopeAt(file string, line, col int) (*symtab.Scope, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("scope at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	inner, err := q.store.InnermostScopeAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}
	if inner == nil {
		return nil, nil
	}
	chain, err := q.store.ScopeChain(inner.ID)
	if err != nil {
		return nil, fmt.Errorf("scope at: %w", err)
	}

	var cur *symtab.Scope
	for i := len(chain) - 1; i >= 0; i-- {
		row := chain[i]
		cur = symtab.NewScope(row.Kind, row.Name, span(row.StartLine, row.StartCol, row.EndLine, row.EndCol), cur)
		cur.ID = row.ID
		if err := q.loadTable(cur); err != nil {
			return nil, fmt.Errorf("scope at: %w", err)
		}
	}
	return cur, nil
}

// loadTable fills sc's declaration table from the store.
func (q *QueryBuilder) loadTable(sc *symtab.Scope) error {
	decls, err := q.store.DeclarationsByScope(sc.ID)
	if err != nil {
		return err
	}
	if len(decls) == 0 {
		return nil
	}
	ids := make([]int64, len(decls))
	for i, d := range decls {
		ids[i] = d.ID
	}
	uses, err := q.store.OccurrencesByDeclarations(ids)
	if err != nil {
		return err
	}
	for _, d := range decls {
		nd, _ := sc.Declare(&symtab.NameDeclaration{
			ID:   d.ID,
			Name: d.Name,
			Kind: d.Kind,
			Span: span(d.StartLine, d.StartCol, d.EndLine, d.EndCol),
		})
		for _, o := range uses[d.ID] {
			sc.AddOccurrence(nd, &symtab.NameOccurrence{
				ID:   o.ID,
				Name: o.Name,
				Span: span(o.StartLine, o.StartCol, o.EndLine, o.EndCol),
			})
		}
	}
	return nil
}

func span(sl, sc, el, ec int) symtab.Span {
	return symtab.Span{
		Start: symtab.Position{Line: sl, Col: sc},
		End:   symtab.Position{Line: el, Col: ec},
	}
}

// NodeAt returns a source node handle for (line, col) in file. The node is
// unscoped when the file is unknown or no scope encloses the position.
func (q *QueryBuilder) NodeAt(file string, line, col int) (*symtab.Node, error) {
	sc, err := q.ScopeAt(file, line, col)
	if err != nil {
		return nil, err
	}
	at := span(line, col, line, col)
	if sc == nil {
		return symtab.Unscoped(file, at), nil
	}
	return symtab.Scoped(file, at, sc), nil
}

// ScopeHierarchyAt builds the ascendant scope hierarchy of (line, col) in
// file. The root is the outermost scope. Returns nil when the position has
// no scope.
func (q *QueryBuilder) ScopeHierarchyAt(file string, line, col int) (*hierarchy.Node, error) {
	node, err := q.NodeAt(file, line, col)
	if err != nil {
		return nil, err
	}
	return hierarchy.BuildAscendantHierarchy(node), nil
}

// FindInHierarchy searches the hierarchy of (line, col) for a node labelled
// value. With levels false the search follows TryFindNode, where a node k
// edges below the root needs maxDepth > k; with levels true it follows
// FindNode, where maxDepth counts edges and the root itself is compared.
// The hierarchy root is returned alongside the match so callers can offer
// suggestions on a miss.
func (q *QueryBuilder) FindInHierarchy(file string, line, col int, value string, maxDepth int, levels bool) (found, root *hierarchy.Node, err error) {
	root, err = q.ScopeHierarchyAt(file, line, col)
	if err != nil || root == nil {
		return nil, root, err
	}
	if levels {
		return root.FindNode(value, maxDepth), root, nil
	}
	return root.TryFindNode(value, maxDepth), root, nil
}

// Suggestion is a hierarchy label close to a searched value.
type Suggestion struct {
	Label string
	Depth int
	Score float32
}

// Suggest ranks the distinct labels in the tree under root by Jaro-Winkler
// similarity to value and returns the best n. Ties go to the shallower
// node, then to the label.
func (q *QueryBuilder) Suggest(root *hierarchy.Node, value string, n int) []Suggestion {
	if root == nil || n <= 0 {
		return nil
	}
	best := make(map[string]Suggestion)
	root.Walk(func(node *hierarchy.Node) bool {
		label := node.Label()
		score, err := edlib.StringsSimilarity(value, label, edlib.JaroWinkler)
		if err != nil || score <= 0 {
			return true
		}
		if prev, ok := best[label]; !ok || node.Depth() < prev.Depth {
			best[label] = Suggestion{Label: label, Depth: node.Depth(), Score: score}
		}
		return true
	})

	out := make([]Suggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// DeclarationsInScope returns the declarations of a scope in table order.
func (q *QueryBuilder) DeclarationsInScope(scopeID int64) ([]*Declaration, error) {
	decls, err := q.store.DeclarationsByScope(scopeID)
	if err != nil {
		return nil, fmt.Errorf("declarations in scope: %w", err)
	}
	return decls, nil
}

// OccurrencesOf returns the resolved uses of a declaration in source order.
func (q *QueryBuilder) OccurrencesOf(declarationID int64) ([]*Occurrence, error) {
	occs, err := q.store.OccurrencesByDeclaration(declarationID)
	if err != nil {
		return nil, fmt.Errorf("occurrences of: %w", err)
	}
	return occs, nil
}

// ScopeChain returns the stored scope with the given ID and its ancestors,
// innermost first.
func (q *QueryBuilder) ScopeChain(scopeID int64) ([]*Scope, error) {
	chain, err := q.store.ScopeChain(scopeID)
	if err != nil {
		return nil, err
	}
	return chain, nil
}
