package scopetree

import "github.com/jward/scopetree/internal/store"

// Public type aliases for the store rows returned by the QueryBuilder API.
// External callers use these names; no conversion is needed.

type Store = store.Store
type File = store.File
type Scope = store.Scope
type Declaration = store.Declaration
type Occurrence = store.Occurrence
type Stats = store.Stats
