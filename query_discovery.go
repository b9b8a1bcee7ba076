package scopetree

import (
	"fmt"
	"strings"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName      SortField = "name"
	SortByKind      SortField = "kind"
	SortByFile      SortField = "file"
	SortByLanguage  SortField = "language"
	SortByLineCount SortField = "line_count"
	SortByUseCount  SortField = "use_count"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// DeclarationResult extends Declaration with computed fields useful for
// discovery.
type DeclarationResult struct {
	Declaration
	FilePath  string
	ScopeKind string
	ScopeName string
	UseCount  int // resolved occurrences of this declaration
}

// DeclarationFilter specifies which declarations to include. All fields
// are optional.
type DeclarationFilter struct {
	Kinds      []string // match any of these kinds
	FileID     *int64   // restrict to a single file
	ScopeID    *int64   // restrict to one scope's table
	PathPrefix *string  // restrict to files under this path
	Unused     bool     // only declarations with no resolved occurrence
}

// --- Internal Helpers ---

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE
// matching. "internal/store" -> "internal/store/" so that
// "internal/store_utils/" does not match.
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// declarationSortColumn returns the SQL ORDER BY expression for
// declaration queries. Falls back to "d.name" for unknown fields.
func declarationSortColumn(field SortField) string {
	switch field {
	case SortByKind:
		return "d.kind"
	case SortByFile:
		return "f.path"
	case SortByLanguage:
		return "f.language"
	case SortByUseCount:
		return "use_count"
	default:
		return "d.name"
	}
}

// fileSortColumn returns the SQL ORDER BY expression for file queries.
// Falls back to "path" for inapplicable fields.
func fileSortColumn(field SortField) string {
	switch field {
	case SortByLanguage:
		return "language"
	case SortByLineCount:
		return "line_count"
	default:
		return "path"
	}
}

// sortDirection returns "ASC" or "DESC".
func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

const declarationResultCols = `d.id, d.file_id, d.scope_id, d.name, d.kind, d.ordinal,
	d.start_line, d.start_col, d.end_line, d.end_col,
	f.path, s.kind, s.name,
	(SELECT COUNT(*) FROM occurrences o WHERE o.declaration_id = d.id) AS use_count`

const declarationResultFrom = `FROM declarations d
	JOIN files f ON d.file_id = f.id
	JOIN scopes s ON d.scope_id = s.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanDeclarationResult(row scanner) (DeclarationResult, error) {
	var r DeclarationResult
	err := row.Scan(
		&r.ID, &r.FileID, &r.ScopeID, &r.Name, &r.Kind, &r.Ordinal,
		&r.StartLine, &r.StartCol, &r.EndLine, &r.EndCol,
		&r.FilePath, &r.ScopeKind, &r.ScopeName, &r.UseCount,
	)
	return r, err
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// globToLike turns a name pattern using * and ? wildcards into a LIKE
// pattern. A pattern without wildcards matches as a substring.
func globToLike(pattern string) string {
	if !strings.ContainsAny(pattern, "*?") {
		return "%" + escapeLike(pattern) + "%"
	}
	escaped := escapeLike(pattern)
	escaped = strings.ReplaceAll(escaped, "*", "%")
	return strings.ReplaceAll(escaped, "?", "_")
}

// --- Enumeration Endpoints ---

// Files lists indexed files, optionally filtered by path prefix and
// language.
func (q *QueryBuilder) Files(pathPrefix, language string, sort Sort, page Pagination) (*PagedResult[File], error) {
	page = page.normalize()

	var where []string
	var args []any
	if prefix := normalizePathPrefix(pathPrefix); prefix != "" {
		where = append(where, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(prefix)+"%")
	}
	if language != "" {
		where = append(where, "language = ?")
		args = append(args, language)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM files "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("files: count: %w", err)
	}

	dataSQL := fmt.Sprintf(
		`SELECT id, path, language, hash, line_count, last_indexed FROM files %s ORDER BY %s %s, path ASC LIMIT ? OFFSET ?`,
		whereClause, fileSortColumn(sort.Field), sortDirection(sort.Order),
	)
	rows, err := q.store.DB().Query(dataSQL, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("files: query: %w", err)
	}
	defer rows.Close()

	items := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("files: scan: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("files: rows: %w", err)
	}
	return &PagedResult[File]{Items: items, TotalCount: totalCount}, nil
}

// SearchDeclarations finds declarations whose name matches pattern. The
// pattern may use * and ? wildcards; without them it matches a substring.
// An empty pattern matches every name.
func (q *QueryBuilder) SearchDeclarations(pattern string, filter DeclarationFilter, sort Sort, page Pagination) (*PagedResult[DeclarationResult], error) {
	page = page.normalize()

	var where []string
	var args []any
	if pattern != "" {
		where = append(where, "d.name LIKE ? ESCAPE '\\'")
		args = append(args, globToLike(pattern))
	}
	if len(filter.Kinds) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Kinds)-1) + "?"
		where = append(where, "d.kind IN ("+placeholders+")")
		for _, k := range filter.Kinds {
			args = append(args, k)
		}
	}
	if filter.FileID != nil {
		where = append(where, "d.file_id = ?")
		args = append(args, *filter.FileID)
	}
	if filter.ScopeID != nil {
		where = append(where, "d.scope_id = ?")
		args = append(args, *filter.ScopeID)
	}
	if filter.PathPrefix != nil {
		if prefix := normalizePathPrefix(*filter.PathPrefix); prefix != "" {
			where = append(where, "f.path LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(prefix)+"%")
		}
	}
	if filter.Unused {
		where = append(where, "NOT EXISTS (SELECT 1 FROM occurrences o2 WHERE o2.declaration_id = d.id)")
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int
	countSQL := "SELECT COUNT(*) " + declarationResultFrom + " " + whereClause
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("search declarations: count: %w", err)
	}

	dataSQL := fmt.Sprintf(
		`SELECT %s %s %s ORDER BY %s %s, d.file_id, d.scope_id, d.ordinal LIMIT ? OFFSET ?`,
		declarationResultCols, declarationResultFrom, whereClause,
		declarationSortColumn(sort.Field), sortDirection(sort.Order),
	)
	rows, err := q.store.DB().Query(dataSQL, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("search declarations: query: %w", err)
	}
	defer rows.Close()

	items := []DeclarationResult{}
	for rows.Next() {
		r, err := scanDeclarationResult(rows)
		if err != nil {
			return nil, fmt.Errorf("search declarations: scan: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search declarations: rows: %w", err)
	}
	return &PagedResult[DeclarationResult]{Items: items, TotalCount: totalCount}, nil
}

// --- Digest Endpoints ---

// LanguageStats provides a per-language breakdown for Summary.
type LanguageStats struct {
	Language         string
	FileCount        int
	LineCount        int
	ScopeCount       int
	DeclarationCount int
	KindCounts       map[string]int // declarations per kind
}

// ProjectSummary is a high-level overview of the index.
type ProjectSummary struct {
	Languages       []LanguageStats
	Unresolved      int
	IndexedAt       string
	TopDeclarations []DeclarationResult
}

// Summary returns per-language counts and the topN most used declarations.
func (q *QueryBuilder) Summary(topN int) (*ProjectSummary, error) {
	summary := &ProjectSummary{Languages: []LanguageStats{}, TopDeclarations: []DeclarationResult{}}
	db := q.store.DB()

	langRows, err := db.Query(
		`SELECT language, COUNT(*), COALESCE(SUM(line_count), 0) FROM files GROUP BY language ORDER BY language`,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: languages: %w", err)
	}
	for langRows.Next() {
		ls := LanguageStats{KindCounts: map[string]int{}}
		if err := langRows.Scan(&ls.Language, &ls.FileCount, &ls.LineCount); err != nil {
			langRows.Close()
			return nil, fmt.Errorf("summary: scan language: %w", err)
		}
		summary.Languages = append(summary.Languages, ls)
	}
	langRows.Close()
	if err := langRows.Err(); err != nil {
		return nil, fmt.Errorf("summary: language rows: %w", err)
	}

	for i := range summary.Languages {
		lang := &summary.Languages[i]
		err := db.QueryRow(
			`SELECT COUNT(*) FROM scopes s JOIN files f ON s.file_id = f.id WHERE f.language = ?`,
			lang.Language,
		).Scan(&lang.ScopeCount)
		if err != nil {
			return nil, fmt.Errorf("summary: scope count for %s: %w", lang.Language, err)
		}

		kindRows, err := db.Query(
			`SELECT d.kind, COUNT(*) FROM declarations d
			 JOIN files f ON d.file_id = f.id
			 WHERE f.language = ?
			 GROUP BY d.kind`,
			lang.Language,
		)
		if err != nil {
			return nil, fmt.Errorf("summary: kind counts for %s: %w", lang.Language, err)
		}
		for kindRows.Next() {
			var kind string
			var count int
			if err := kindRows.Scan(&kind, &count); err != nil {
				kindRows.Close()
				return nil, fmt.Errorf("summary: scan kind: %w", err)
			}
			lang.KindCounts[kind] = count
			lang.DeclarationCount += count
		}
		kindRows.Close()
		if err := kindRows.Err(); err != nil {
			return nil, fmt.Errorf("summary: kind rows: %w", err)
		}
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM occurrences WHERE declaration_id IS NULL`).Scan(&summary.Unresolved); err != nil {
		return nil, fmt.Errorf("summary: unresolved: %w", err)
	}
	if summary.IndexedAt, err = q.store.GetMetadata(MetaIndexedAt); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	if topN > 0 {
		top, err := q.SearchDeclarations("", DeclarationFilter{}, Sort{Field: SortByUseCount, Order: Desc}, Pagination{Limit: topN})
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		for _, d := range top.Items {
			if d.UseCount > 0 {
				summary.TopDeclarations = append(summary.TopDeclarations, d)
			}
		}
	}
	return summary, nil
}
