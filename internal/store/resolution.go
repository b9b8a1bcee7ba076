package store

import "fmt"

// OccurrencesByDeclaration returns the resolved uses of a declaration in
// source order.
func (s *Store) OccurrencesByDeclaration(declarationID int64) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		"SELECT "+occurrenceCols+" FROM occurrences WHERE declaration_id = ? ORDER BY file_id, start_line, start_col",
		declarationID)
	if err != nil {
		return nil, fmt.Errorf("occurrences by declaration: %w", err)
	}
	return occs, nil
}

// OccurrencesByDeclarations returns uses grouped by declaration ID for a
// batch of declarations.
func (s *Store) OccurrencesByDeclarations(ids []int64) (map[int64][]*Occurrence, error) {
	out := make(map[int64][]*Occurrence, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	occs, err := s.queryOccurrences(
		"SELECT "+occurrenceCols+" FROM occurrences WHERE declaration_id IN ("+placeholderList(len(ids))+
			") ORDER BY file_id, start_line, start_col",
		int64sToArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("occurrences by declarations: %w", err)
	}
	for _, o := range occs {
		out[*o.DeclarationID] = append(out[*o.DeclarationID], o)
	}
	return out, nil
}

// UnresolvedOccurrences returns uses in fileID that did not bind to any
// declaration.
func (s *Store) UnresolvedOccurrences(fileID int64) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		"SELECT "+occurrenceCols+" FROM occurrences WHERE file_id = ? AND declaration_id IS NULL ORDER BY start_line, start_col",
		fileID)
	if err != nil {
		return nil, fmt.Errorf("unresolved occurrences: %w", err)
	}
	return occs, nil
}

// ResolveOccurrence binds an occurrence to a declaration.
func (s *Store) ResolveOccurrence(occurrenceID, declarationID int64) error {
	_, err := s.db.Exec("UPDATE occurrences SET declaration_id = ? WHERE id = ?", declarationID, occurrenceID)
	if err != nil {
		return fmt.Errorf("resolve occurrence: %w", err)
	}
	return nil
}

// UnusedDeclarations returns declarations with no resolved occurrence,
// optionally limited to one file (fileID 0 means all files).
func (s *Store) UnusedDeclarations(fileID int64) ([]*Declaration, error) {
	query := `SELECT ` + declarationCols + ` FROM declarations d
		 WHERE NOT EXISTS (SELECT 1 FROM occurrences o WHERE o.declaration_id = d.id)`
	var args []any
	if fileID != 0 {
		query += " AND d.file_id = ?"
		args = append(args, fileID)
	}
	query += " ORDER BY d.file_id, d.scope_id, d.ordinal"
	decls, err := s.queryDeclarations(query, args...)
	if err != nil {
		return nil, fmt.Errorf("unused declarations: %w", err)
	}
	return decls, nil
}
