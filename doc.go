// Package scopetree indexes the lexical scopes of source files and projects
// the scope ancestry of any source position into a searchable tree.
//
// # Pipeline
//
// For each source file the Engine parses with tree-sitter, walks the syntax
// tree with a per-language rule table, and writes three kinds of rows to
// SQLite: scopes (with parent links), the names declared in each scope (in
// declaration-table order) and the occurrences of names, resolved through the
// enclosing scope chain. Go, Python and JavaScript are supported.
//
// # Usage
//
//	e, err := scopetree.New("scopetree.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	root, err := q.ScopeHierarchyAt("/abs/path/main.go", 10, 4)
//	hit := root.TryFindNode("x", 4)
//
// # Hierarchies
//
// [QueryBuilder.ScopeHierarchyAt] loads the innermost scope at a position
// together with its ancestors and hands it to
// [hierarchy.BuildAscendantHierarchy]. The root of the result is the
// outermost scope; each scope node lists its declarations followed by the
// next-inner scope. Searches over the tree are exposed by
// [QueryBuilder.FindInHierarchy] and, for near misses, [QueryBuilder.Suggest].
//
// # Incremental indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged and
// replaces the rows of changed files. [Engine.Watch] keeps an index current
// by re-indexing files reported by the filesystem watcher.
//
// # Reports
//
// Report scripts are Risor programs run over the index; see
// [Engine.Report] and the scripts package.
package scopetree
