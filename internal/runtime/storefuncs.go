package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/scopetree/internal/store"
)

// Query host functions over the scope index. Rows come back as Risor maps
// with snake_case keys; absent optional IDs are omitted.

func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		var (
			files []*store.File
			err   error
		)
		switch len(args) {
		case 0:
			files, err = s.Files()
		case 1:
			lang, convErr := toString(args[0])
			if convErr != nil {
				return object.Errorf("files: %v", convErr)
			}
			files, err = s.FilesByLanguage(lang)
		default:
			return object.Errorf("files: expected 0 or 1 arguments, got %d", len(args))
		}
		if err != nil {
			return object.Errorf("files: %v", err)
		}

		results := make([]object.Object, 0, len(files))
		for _, f := range files {
			results = append(results, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"path":       object.NewString(f.Path),
				"language":   object.NewString(f.Language),
				"line_count": object.NewInt(int64(f.LineCount)),
			}))
		}
		return object.NewList(results)
	})
}

func makeScopesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scopes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scopes", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("scopes: %v", err)
		}
		scopes, queryErr := s.ScopesByFile(fileID)
		if queryErr != nil {
			return object.Errorf("scopes: %v", queryErr)
		}
		return scopesToList(scopes)
	})
}

func makeScopeChainFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("scope_chain", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("scope_chain", 1, len(args))
		}
		scopeID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("scope_chain: %v", err)
		}

		chain, queryErr := s.ScopeChain(scopeID)
		if queryErr != nil {
			return object.Errorf("scope_chain: %v", queryErr)
		}
		return scopesToList(chain)
	})
}

func makeDeclarationsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("declarations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declarations", 1, len(args))
		}
		scopeID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("declarations: %v", err)
		}
		decls, queryErr := s.DeclarationsByScope(scopeID)
		if queryErr != nil {
			return object.Errorf("declarations: %v", queryErr)
		}
		return declarationsToList(s, decls)
	})
}

func makeOccurrencesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("occurrences", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("occurrences", 1, len(args))
		}
		declID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("occurrences: %v", err)
		}
		occs, queryErr := s.OccurrencesByDeclaration(declID)
		if queryErr != nil {
			return object.Errorf("occurrences: %v", queryErr)
		}
		return occurrencesToList(occs)
	})
}

// unused([file_id]) lists declarations with no resolved occurrence.
func makeUnusedFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("unused", func(ctx context.Context, args ...object.Object) object.Object {
		var fileID int64
		switch len(args) {
		case 0:
		case 1:
			v, err := toInt64(args[0])
			if err != nil {
				return object.Errorf("unused: %v", err)
			}
			fileID = v
		default:
			return object.Errorf("unused: expected 0 or 1 arguments, got %d", len(args))
		}
		decls, err := s.UnusedDeclarations(fileID)
		if err != nil {
			return object.Errorf("unused: %v", err)
		}
		return declarationsToList(s, decls)
	})
}

func makeUnresolvedFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("unresolved", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("unresolved", 1, len(args))
		}
		fileID, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("unresolved: %v", err)
		}
		occs, queryErr := s.UnresolvedOccurrences(fileID)
		if queryErr != nil {
			return object.Errorf("unresolved: %v", queryErr)
		}
		return occurrencesToList(occs)
	})
}

func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		queryArgs := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			queryArgs = append(queryArgs, arg.Interface())
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		results := []object.Object{}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		return object.NewList(results)
	})
}

// --- Conversion helpers ---

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func toBool(obj object.Object) (bool, error) {
	if b, ok := obj.(*object.Bool); ok {
		return b.Value(), nil
	}
	return false, fmt.Errorf("expected bool, got %s", obj.Type())
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

func spanFields(m map[string]object.Object, sl, sc, el, ec int) {
	m["start_line"] = object.NewInt(int64(sl))
	m["start_col"] = object.NewInt(int64(sc))
	m["end_line"] = object.NewInt(int64(el))
	m["end_col"] = object.NewInt(int64(ec))
}

func scopesToList(scopes []*store.Scope) object.Object {
	results := make([]object.Object, 0, len(scopes))
	for _, sc := range scopes {
		m := map[string]object.Object{
			"id":      object.NewInt(sc.ID),
			"file_id": object.NewInt(sc.FileID),
			"kind":    object.NewString(sc.Kind),
			"name":    object.NewString(sc.Name),
		}
		spanFields(m, sc.StartLine, sc.StartCol, sc.EndLine, sc.EndCol)
		if sc.ParentScopeID != nil {
			m["parent_scope_id"] = object.NewInt(*sc.ParentScopeID)
		}
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

// declarationsToList adds each declaration's file path, looked up once per
// file.
func declarationsToList(s *store.Store, decls []*store.Declaration) object.Object {
	paths := make(map[int64]string)
	results := make([]object.Object, 0, len(decls))
	for _, d := range decls {
		path, ok := paths[d.FileID]
		if !ok {
			if f, err := s.FileByID(d.FileID); err == nil && f != nil {
				path = f.Path
			}
			paths[d.FileID] = path
		}
		m := map[string]object.Object{
			"id":       object.NewInt(d.ID),
			"file_id":  object.NewInt(d.FileID),
			"file":     object.NewString(path),
			"scope_id": object.NewInt(d.ScopeID),
			"name":     object.NewString(d.Name),
			"kind":     object.NewString(d.Kind),
			"ordinal":  object.NewInt(int64(d.Ordinal)),
		}
		spanFields(m, d.StartLine, d.StartCol, d.EndLine, d.EndCol)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func occurrencesToList(occs []*store.Occurrence) object.Object {
	results := make([]object.Object, 0, len(occs))
	for _, o := range occs {
		m := map[string]object.Object{
			"id":      object.NewInt(o.ID),
			"file_id": object.NewInt(o.FileID),
			"name":    object.NewString(o.Name),
		}
		spanFields(m, o.StartLine, o.StartCol, o.EndLine, o.EndCol)
		if o.ScopeID != nil {
			m["scope_id"] = object.NewInt(*o.ScopeID)
		}
		if o.DeclarationID != nil {
			m["declaration_id"] = object.NewInt(*o.DeclarationID)
		}
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}
