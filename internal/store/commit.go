package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and all FK references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Scopes (parent_scope_id points at an earlier scope)
//  2. Declarations (scope_id)
//  3. Occurrences (scope_id, declaration_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id *int64) (*int64, error) {
		if id == nil || *id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[*id]
		if !ok {
			return nil, fmt.Errorf("unknown batch id %d", *id)
		}
		return &realID, nil
	}

	// 1. Scopes
	for _, scope := range batch.Scopes {
		parent, err := remap(scope.ParentScopeID)
		if err != nil {
			return fmt.Errorf("commit batch: scope parent: %w", err)
		}
		scope.ParentScopeID = parent
		realID, err := insertScopeTx(tx, &scope)
		if err != nil {
			return fmt.Errorf("commit batch: scope: %w", err)
		}
		fakeToReal[scope.ID] = realID
	}

	// 2. Declarations
	for _, d := range batch.Declarations {
		scopeID, err := remap(&d.ScopeID)
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		d.ScopeID = *scopeID
		realID, err := insertDeclarationTx(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: declaration %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	// 3. Occurrences
	for _, o := range batch.Occurrences {
		if o.ScopeID, err = remap(o.ScopeID); err != nil {
			return fmt.Errorf("commit batch: occurrence %q: %w", o.Name, err)
		}
		if o.DeclarationID, err = remap(o.DeclarationID); err != nil {
			return fmt.Errorf("commit batch: occurrence %q: %w", o.Name, err)
		}
		if _, err := insertOccurrenceTx(tx, &o); err != nil {
			return fmt.Errorf("commit batch: occurrence %q: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// --- Transaction-scoped insert helpers ---

func insertScopeTx(tx *sql.Tx, scope *Scope) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO scopes (file_id, kind, name, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.FileID, scope.Kind, scope.Name,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol, scope.ParentScopeID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDeclarationTx(tx *sql.Tx, d *Declaration) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO declarations (file_id, scope_id, name, kind, ordinal, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.ScopeID, d.Name, d.Kind, d.Ordinal,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertOccurrenceTx(tx *sql.Tx, o *Occurrence) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO occurrences (file_id, scope_id, declaration_id, name, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.FileID, o.ScopeID, o.DeclarationID, o.Name,
		o.StartLine, o.StartCol, o.EndLine, o.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
