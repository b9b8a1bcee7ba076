package main

import (
	"github.com/jward/scopetree"
	"github.com/jward/scopetree/hierarchy"
	"github.com/jward/scopetree/symtab"
)

// CLINode is a JSON-friendly hierarchy node.
type CLINode struct {
	Label     string     `json:"label"`
	Type      string     `json:"type"` // "scope" or "declaration"
	Kind      string     `json:"kind,omitempty"`
	ScopeID   int64      `json:"scope_id,omitempty"`
	Depth     int        `json:"depth"`
	StartLine int        `json:"start_line"`
	StartCol  int        `json:"start_col"`
	Children  []*CLINode `json:"children,omitempty"`
}

// CLIFind is the result of the find command.
type CLIFind struct {
	Value       string          `json:"value"`
	Found       bool            `json:"found"`
	Path        []string        `json:"path,omitempty"`
	Depth       int             `json:"depth,omitempty"`
	Suggestions []CLISuggestion `json:"suggestions,omitempty"`
}

// CLISuggestion is a near miss offered when find fails.
type CLISuggestion struct {
	Label string  `json:"label"`
	Depth int     `json:"depth"`
	Score float32 `json:"score"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

// CLIDeclaration is a JSON-friendly declaration representation.
type CLIDeclaration struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	ScopeID   int64  `json:"scope_id"`
	Ordinal   int    `json:"ordinal"`
	File      string `json:"file,omitempty"`
	Scope     string `json:"scope,omitempty"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	UseCount  *int   `json:"use_count,omitempty"`
}

// CLILanguage is one row of the summary's language breakdown.
type CLILanguage struct {
	Language     string         `json:"language"`
	Files        int            `json:"files"`
	Lines        int            `json:"lines"`
	Scopes       int            `json:"scopes"`
	Declarations int            `json:"declarations"`
	Kinds        map[string]int `json:"kinds"`
}

// CLISummary is the result of the summary command.
type CLISummary struct {
	Languages       []CLILanguage    `json:"languages"`
	Unresolved      int              `json:"unresolved"`
	IndexedAt       string           `json:"indexed_at,omitempty"`
	TopDeclarations []CLIDeclaration `json:"top_declarations"`
}

// --- Conversions ---

func toCLINode(n *hierarchy.Node) *CLINode {
	if n == nil {
		return nil
	}
	out := &CLINode{Label: n.Label(), Depth: n.Depth()}
	switch p := n.Payload().(type) {
	case hierarchy.ScopePayload:
		out.Type = "scope"
		if sc, ok := p.Scope.(*symtab.Scope); ok {
			out.Kind = sc.Kind
			out.ScopeID = sc.ID
			out.StartLine = sc.Span.Start.Line
			out.StartCol = sc.Span.Start.Col
		}
	case hierarchy.DeclarationPayload:
		out.Type = "declaration"
		if d, ok := p.Declaration.(*symtab.NameDeclaration); ok {
			out.Kind = d.Kind
			out.StartLine = d.Span.Start.Line
			out.StartCol = d.Span.Start.Col
		}
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, toCLINode(c))
	}
	return out
}

func toCLIFile(f scopetree.File) CLIFile {
	return CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, LineCount: f.LineCount}
}

func toCLIDeclaration(d *scopetree.Declaration) CLIDeclaration {
	return CLIDeclaration{
		ID:        d.ID,
		Name:      d.Name,
		Kind:      d.Kind,
		ScopeID:   d.ScopeID,
		Ordinal:   d.Ordinal,
		StartLine: d.StartLine,
		StartCol:  d.StartCol,
	}
}

func toCLIDeclarationResult(r scopetree.DeclarationResult) CLIDeclaration {
	d := toCLIDeclaration(&r.Declaration)
	d.File = r.FilePath
	d.Scope = scopeLabel(r.ScopeKind, r.ScopeName)
	uses := r.UseCount
	d.UseCount = &uses
	return d
}

func scopeLabel(kind, name string) string {
	if name == "" {
		return kind
	}
	return kind + " " + name
}
