// Package extract turns source files into scopes, declarations and
// occurrences using tree-sitter grammars and per-language rule tables.
package extract

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopetree/internal/store"
	"github.com/jward/scopetree/symtab"
)

// Result is the in-memory symbol table built for one file plus counts of
// what was written to the DataStore.
type Result struct {
	Root         *symtab.Scope
	Scopes       []*symtab.Scope // pre-order, parents first
	Declarations int
	Occurrences  int
	Unresolved   int
	LineCount    int
}

// use is an identifier seen during the walk, bound once the whole file has
// been read.
type use struct {
	occ   *symtab.NameOccurrence
	scope *symtab.Scope
	decl  *symtab.NameDeclaration
}

type walker struct {
	rules    *rules
	src      []byte
	root     *symtab.Scope
	scopes   []*symtab.Scope
	uses     []*use
	declared map[uint32]bool // start bytes of identifiers bound by a declaration
}

// Extract parses src, builds its scope tree and writes scopes (parents
// first), declarations (table order) and occurrences to ds.
func Extract(ctx context.Context, ds store.DataStore, fileID int64, filePath string, src []byte, lang string) (*Result, error) {
	r, ok := rulesFor(lang)
	if !ok {
		return nil, fmt.Errorf("extract %s: unsupported language %q", filePath, lang)
	}
	grammar, ok := ParserForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("extract %s: no grammar for %q", filePath, lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	w := &walker{rules: r, src: src, declared: make(map[uint32]bool)}
	w.walk(tree.RootNode(), nil, "", nil)
	if w.root == nil {
		return nil, fmt.Errorf("extract %s: root node %q opens no scope", filePath, tree.RootNode().Type())
	}
	w.resolve()

	res, err := w.write(ds, fileID)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filePath, err)
	}
	res.LineCount = CountLines(src)
	return res, nil
}

// CountLines counts lines, treating a final line without a newline as a line.
func CountLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := strings.Count(string(src), "\n")
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}

func spanOf(n *sitter.Node) symtab.Span {
	s, e := n.StartPoint(), n.EndPoint()
	return symtab.Span{
		Start: symtab.Position{Line: int(s.Row), Col: int(s.Column)},
		End:   symtab.Position{Line: int(e.Row), Col: int(e.Column)},
	}
}

// walk visits n in document order. field is n's field name in parent.
func (w *walker) walk(n, parent *sitter.Node, field string, cur *symtab.Scope) {
	typ := n.Type()
	if w.rules.skip[typ] {
		return
	}

	dr, hasDecl := w.rules.decls[typ]
	if hasDecl && !dr.inner && cur != nil {
		w.declare(n, dr, cur)
	}
	if sr, ok := w.rules.scopes[typ]; ok && !w.folded(typ, parent, field) {
		cur = w.open(n, sr, cur)
	}
	if hasDecl && dr.inner {
		w.declare(n, dr, cur)
	}

	if w.rules.idents[typ] {
		if !w.declared[n.StartByte()] && cur != nil {
			w.record(n, cur)
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		f := n.FieldNameForChild(i)
		if f != "" && w.rules.skipFields[typ+"."+f] {
			continue
		}
		w.walk(child, n, f, cur)
	}
}

// folded reports whether a block shares its parent's scope.
func (w *walker) folded(typ string, parent *sitter.Node, field string) bool {
	if !w.rules.folds[typ] || parent == nil {
		return false
	}
	_, parentOpens := w.rules.scopes[parent.Type()]
	return parentOpens && w.rules.foldFields[field]
}

func (w *walker) open(n *sitter.Node, sr scopeRule, cur *symtab.Scope) *symtab.Scope {
	var name string
	if sr.nameField != "" {
		if nn := n.ChildByFieldName(sr.nameField); nn != nil {
			name = nn.Content(w.src)
		}
	}
	sc := symtab.NewScope(sr.kind, name, spanOf(n), cur)
	if cur == nil {
		w.root = sc
	}
	w.scopes = append(w.scopes, sc)
	return sc
}

func (w *walker) record(n *sitter.Node, cur *symtab.Scope) {
	name := n.Content(w.src)
	if name == "" || name == "_" {
		return
	}
	w.uses = append(w.uses, &use{
		occ:   &symtab.NameOccurrence{Name: name, Span: spanOf(n)},
		scope: cur,
	})
}

// bind declares the identifier n in sc. A name already declared in sc keeps
// its first declaration and n becomes a use of it.
func (w *walker) bind(n *sitter.Node, kind string, sc *symtab.Scope) {
	w.bindName(n.Content(w.src), spanOf(n), kind, sc)
	w.declared[n.StartByte()] = true
}

func (w *walker) bindName(name string, span symtab.Span, kind string, sc *symtab.Scope) {
	if name == "" || name == "_" {
		return
	}
	d, added := sc.Declare(&symtab.NameDeclaration{Name: name, Kind: kind, Span: span})
	if !added {
		w.uses = append(w.uses, &use{
			occ:   &symtab.NameOccurrence{Name: name, Span: span},
			scope: sc,
			decl:  d,
		})
	}
}

func (w *walker) declare(n *sitter.Node, dr declRule, sc *symtab.Scope) {
	switch dr.mode {
	case declFields:
		for _, f := range dr.fields {
			for _, fn := range fieldChildren(n, f) {
				w.bindAll(fn, dr.kind, sc)
			}
		}
	case declParams:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.bindAll(n.NamedChild(i), dr.kind, sc)
		}
	case declRange:
		if !hasToken(n, ":=") {
			return
		}
		for _, f := range dr.fields {
			for _, fn := range fieldChildren(n, f) {
				w.bindAll(fn, dr.kind, sc)
			}
		}
	case declGoImport:
		w.declareGoImport(n, dr.kind, sc)
	case declPyImport:
		w.declarePyImport(n, dr.kind, sc)
	case declJSImport:
		w.declareJSImport(n, dr.kind, sc)
	}
}

// bindAll binds every name reachable from n through list and unwrap rules.
func (w *walker) bindAll(n *sitter.Node, kind string, sc *symtab.Scope) {
	if n == nil {
		return
	}
	typ := n.Type()
	switch {
	case w.rules.names[typ]:
		w.bind(n, kind, sc)
	case w.rules.lists[typ]:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.bindAll(n.NamedChild(i), kind, sc)
		}
	case w.rules.unwrap[typ] != "":
		w.bindAll(n.ChildByFieldName(w.rules.unwrap[typ]), kind, sc)
	}
}

func (w *walker) declareGoImport(n *sitter.Node, kind string, sc *symtab.Scope) {
	if alias := n.ChildByFieldName("name"); alias != nil {
		if alias.Type() == "package_identifier" {
			w.bind(alias, kind, sc)
		}
		return
	}
	p := n.ChildByFieldName("path")
	if p == nil {
		return
	}
	importPath := strings.Trim(p.Content(w.src), "\"`")
	w.bindName(path.Base(importPath), spanOf(p), kind, sc)
}

func (w *walker) declarePyImport(n *sitter.Node, kind string, sc *symtab.Scope) {
	from := n.Type() == "import_from_statement"
	for _, c := range fieldChildren(n, "name") {
		switch c.Type() {
		case "aliased_import":
			w.bindAll(c.ChildByFieldName("alias"), kind, sc)
		case "dotted_name":
			if c.NamedChildCount() == 0 {
				continue
			}
			// import a.b binds a.
			idx := 0
			if from {
				idx = int(c.NamedChildCount()) - 1
			}
			w.bindAll(c.NamedChild(idx), kind, sc)
		}
	}
}

func (w *walker) declareJSImport(n *sitter.Node, kind string, sc *symtab.Scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			c := clause.NamedChild(j)
			switch c.Type() {
			case "identifier":
				w.bind(c, kind, sc)
			case "namespace_import":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					w.bindAll(c.NamedChild(k), kind, sc)
				}
			case "named_imports":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					spec := c.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						w.bindAll(alias, kind, sc)
					} else {
						w.bindAll(spec.ChildByFieldName("name"), kind, sc)
					}
				}
			}
		}
	}
}

func fieldChildren(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			if c := n.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// resolve binds each pending use to the nearest visible declaration.
func (w *walker) resolve() {
	for _, u := range w.uses {
		if u.decl == nil {
			u.decl = w.lookup(u.scope, u.occ)
		}
		if u.decl == nil {
			continue
		}
		for c := u.scope; c != nil; c = c.Enclosing() {
			if c.AddOccurrence(u.decl, u.occ) {
				break
			}
		}
	}
}

// lookup walks the chain from sc outward. Outside the outermost scope a
// declaration is only visible from its own position on, unless its kind is
// hoisted.
func (w *walker) lookup(sc *symtab.Scope, o *symtab.NameOccurrence) *symtab.NameDeclaration {
	for c := sc; c != nil; c = c.Enclosing() {
		d := c.Declared(o.Name)
		if d == nil {
			continue
		}
		if c.Enclosing() == nil || w.rules.hoisted[d.Kind] || !o.Span.Start.Before(d.Span.Start) {
			return d
		}
	}
	return nil
}

func (w *walker) write(ds store.DataStore, fileID int64) (*Result, error) {
	res := &Result{Root: w.root, Scopes: w.scopes}
	ids := make(map[*symtab.Scope]int64, len(w.scopes))

	for _, sc := range w.scopes {
		row := &store.Scope{
			FileID:    fileID,
			Kind:      sc.Kind,
			Name:      sc.Name,
			StartLine: sc.Span.Start.Line,
			StartCol:  sc.Span.Start.Col,
			EndLine:   sc.Span.End.Line,
			EndCol:    sc.Span.End.Col,
		}
		if p := sc.Enclosing(); p != nil {
			pid := ids[p]
			row.ParentScopeID = &pid
		}
		id, err := ds.InsertScope(row)
		if err != nil {
			return nil, err
		}
		ids[sc] = id
		sc.ID = id
	}

	for _, sc := range w.scopes {
		for i, e := range sc.Table() {
			d := e.Declaration
			id, err := ds.InsertDeclaration(&store.Declaration{
				FileID:    fileID,
				ScopeID:   ids[sc],
				Name:      d.Name,
				Kind:      d.Kind,
				Ordinal:   i,
				StartLine: d.Span.Start.Line,
				StartCol:  d.Span.Start.Col,
				EndLine:   d.Span.End.Line,
				EndCol:    d.Span.End.Col,
			})
			if err != nil {
				return nil, err
			}
			d.ID = id
			res.Declarations++
		}
	}

	for _, u := range w.uses {
		scopeID := ids[u.scope]
		row := &store.Occurrence{
			FileID:    fileID,
			ScopeID:   &scopeID,
			Name:      u.occ.Name,
			StartLine: u.occ.Span.Start.Line,
			StartCol:  u.occ.Span.Start.Col,
			EndLine:   u.occ.Span.End.Line,
			EndCol:    u.occ.Span.End.Col,
		}
		if u.decl != nil {
			declID := u.decl.ID
			row.DeclarationID = &declID
		} else {
			res.Unresolved++
		}
		id, err := ds.InsertOccurrence(row)
		if err != nil {
			return nil, err
		}
		u.occ.ID = id
		res.Occurrences++
	}
	return res, nil
}
