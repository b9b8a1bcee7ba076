package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, language, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = "id, path, language, hash, line_count, last_indexed"

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE id = ?", id,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns all indexed files ordered by path.
func (s *Store) Files() ([]*File, error) {
	return s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	return s.queryFiles("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Scope operations ---

func (s *Store) InsertScope(scope *Scope) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scopes (file_id, kind, name, start_line, start_col, end_line, end_col, parent_scope_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.FileID, scope.Kind, scope.Name,
		scope.StartLine, scope.StartCol, scope.EndLine, scope.EndCol, scope.ParentScopeID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	scope.ID = id
	return id, nil
}

const scopeCols = `id, file_id, kind, name, start_line, start_col, end_line, end_col, parent_scope_id`

func scanScope(scanner interface{ Scan(...any) error }) (*Scope, error) {
	sc := &Scope{}
	err := scanner.Scan(
		&sc.ID, &sc.FileID, &sc.Kind, &sc.Name,
		&sc.StartLine, &sc.StartCol, &sc.EndLine, &sc.EndCol, &sc.ParentScopeID,
	)
	return sc, err
}

func (s *Store) ScopeByID(id int64) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope by id: %w", err)
	}
	return sc, nil
}

func (s *Store) ScopesByFile(fileID int64) ([]*Scope, error) {
	rows, err := s.db.Query("SELECT "+scopeCols+" FROM scopes WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: %w", err)
	}
	defer rows.Close()
	var scopes []*Scope
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

// ScopeChain walks up the parent_scope_id chain from scopeID to root,
// innermost first. A chain that revisits a scope is reported as an error.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	seen := make(map[int64]bool)
	currentID := &scopeID
	for currentID != nil {
		if seen[*currentID] {
			return nil, fmt.Errorf("scope chain: cycle at scope %d", *currentID)
		}
		seen[*currentID] = true
		sc, err := scanScope(s.db.QueryRow("SELECT "+scopeCols+" FROM scopes WHERE id = ?", *currentID))
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		chain = append(chain, sc)
		currentID = sc.ParentScopeID
	}
	return chain, nil
}

// InnermostScopeAt returns the innermost scope in fileID whose span contains
// (line, col), or nil if none does. End positions are exclusive. Nested
// scopes never start before their parent, so the containing scope with the
// latest start is the innermost one.
func (s *Store) InnermostScopeAt(fileID int64, line, col int) (*Scope, error) {
	sc, err := scanScope(s.db.QueryRow(
		`SELECT `+scopeCols+` FROM scopes
		 WHERE file_id = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col > ?))
		 ORDER BY start_line DESC, start_col DESC, end_line ASC, end_col ASC, id DESC
		 LIMIT 1`,
		fileID,
		line, line, col,
		line, line, col,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("innermost scope at: %w", err)
	}
	return sc, nil
}

// --- Declaration operations ---

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO declarations (file_id, scope_id, name, kind, ordinal, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.ScopeID, d.Name, d.Kind, d.Ordinal,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert declaration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

const declarationCols = `id, file_id, scope_id, name, kind, ordinal, start_line, start_col, end_line, end_col`

func (s *Store) queryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var decls []*Declaration
	for rows.Next() {
		d := &Declaration{}
		if err := rows.Scan(
			&d.ID, &d.FileID, &d.ScopeID, &d.Name, &d.Kind, &d.Ordinal,
			&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
		); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

// DeclarationsByScope returns a scope's declarations in table order.
func (s *Store) DeclarationsByScope(scopeID int64) ([]*Declaration, error) {
	decls, err := s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE scope_id = ? ORDER BY ordinal, id", scopeID)
	if err != nil {
		return nil, fmt.Errorf("declarations by scope: %w", err)
	}
	return decls, nil
}

func (s *Store) DeclarationsByName(name string) ([]*Declaration, error) {
	decls, err := s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE name = ? ORDER BY file_id, scope_id", name)
	if err != nil {
		return nil, fmt.Errorf("declarations by name: %w", err)
	}
	return decls, nil
}

func (s *Store) DeclarationsByFile(fileID int64) ([]*Declaration, error) {
	decls, err := s.queryDeclarations(
		"SELECT "+declarationCols+" FROM declarations WHERE file_id = ? ORDER BY scope_id, ordinal", fileID)
	if err != nil {
		return nil, fmt.Errorf("declarations by file: %w", err)
	}
	return decls, nil
}

func (s *Store) DeclarationByID(id int64) (*Declaration, error) {
	decls, err := s.queryDeclarations("SELECT "+declarationCols+" FROM declarations WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("declaration by id: %w", err)
	}
	if len(decls) == 0 {
		return nil, nil
	}
	return decls[0], nil
}

// --- Occurrence operations ---

func (s *Store) InsertOccurrence(o *Occurrence) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO occurrences (file_id, scope_id, declaration_id, name, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.FileID, o.ScopeID, o.DeclarationID, o.Name,
		o.StartLine, o.StartCol, o.EndLine, o.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert occurrence: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	o.ID = id
	return id, nil
}

const occurrenceCols = `id, file_id, scope_id, declaration_id, name, start_line, start_col, end_line, end_col`

func (s *Store) queryOccurrences(query string, args ...any) ([]*Occurrence, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var occs []*Occurrence
	for rows.Next() {
		o := &Occurrence{}
		if err := rows.Scan(
			&o.ID, &o.FileID, &o.ScopeID, &o.DeclarationID, &o.Name,
			&o.StartLine, &o.StartCol, &o.EndLine, &o.EndCol,
		); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}

func (s *Store) OccurrencesByFile(fileID int64) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		"SELECT "+occurrenceCols+" FROM occurrences WHERE file_id = ? ORDER BY start_line, start_col", fileID)
	if err != nil {
		return nil, fmt.Errorf("occurrences by file: %w", err)
	}
	return occs, nil
}

func (s *Store) OccurrencesByScope(scopeID int64) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		"SELECT "+occurrenceCols+" FROM occurrences WHERE scope_id = ? ORDER BY start_line, start_col", scopeID)
	if err != nil {
		return nil, fmt.Errorf("occurrences by scope: %w", err)
	}
	return occs, nil
}
