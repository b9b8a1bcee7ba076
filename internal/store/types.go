package store

import "time"

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

type Scope struct {
	ID            int64
	FileID        int64
	Kind          string
	Name          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	ParentScopeID *int64
}

// Declaration is a name declared in a scope. Ordinal is the position of the
// declaration in its scope's table.
type Declaration struct {
	ID        int64
	FileID    int64
	ScopeID   int64
	Name      string
	Kind      string
	Ordinal   int
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Occurrence is a use of a name. DeclarationID is nil when the name did not
// resolve to any enclosing declaration.
type Occurrence struct {
	ID            int64
	FileID        int64
	ScopeID       *int64
	DeclarationID *int64
	Name          string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}
