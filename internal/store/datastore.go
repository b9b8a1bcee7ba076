package store

// DataStore is the interface for extraction-phase writes. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// extraction) implement it.
type DataStore interface {
	// Extraction inserts; each returns the assigned ID.
	InsertScope(scope *Scope) (int64, error)
	InsertDeclaration(d *Declaration) (int64, error)
	InsertOccurrence(o *Occurrence) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
