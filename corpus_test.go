package scopetree

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corpusDirs returns testdata/{language}/{level}/src directories.
func corpusDirs(tb testing.TB) map[string]string {
	tb.Helper()
	langDirs, err := os.ReadDir("testdata")
	if err != nil {
		tb.Skip("no testdata directory found")
	}
	out := make(map[string]string)
	for _, langDir := range langDirs {
		if !langDir.IsDir() {
			continue
		}
		langRoot := filepath.Join("testdata", langDir.Name())
		levels, err := os.ReadDir(langRoot)
		if err != nil {
			continue
		}
		for _, level := range levels {
			src := filepath.Join(langRoot, level.Name(), "src")
			if info, err := os.Stat(src); err == nil && info.IsDir() {
				out[langDir.Name()+"/"+level.Name()] = src
			}
		}
	}
	return out
}

// TestCorpus indexes every testdata program in both modes and checks the
// scope invariants that hold for any input.
func TestCorpus(t *testing.T) {
	for name, src := range corpusDirs(t) {
		t.Run(name, func(t *testing.T) {
			serial := newTestEngine(t, WithParallel(false))
			parallel := newTestEngine(t, WithParallel(true), WithWorkers(4))
			require.NoError(t, serial.IndexDirectory(context.Background(), src))
			require.NoError(t, parallel.IndexDirectory(context.Background(), src))

			ss, err := serial.Stats()
			require.NoError(t, err)
			ps, err := parallel.Stats()
			require.NoError(t, err)
			assert.Equal(t, ss, ps, "serial and parallel indexing disagree")
			require.Positive(t, ss.Files)

			verifyCorpus(t, parallel)
		})
	}
}

func verifyCorpus(t *testing.T, e *Engine) {
	t.Helper()
	s := e.Store()
	q := e.Query()

	files, err := s.Files()
	require.NoError(t, err)
	for _, f := range files {
		scopes, err := s.ScopesByFile(f.ID)
		require.NoError(t, err)
		roots := 0
		for _, sc := range scopes {
			if sc.ParentScopeID == nil {
				roots++
				continue
			}
			parent, err := s.ScopeByID(*sc.ParentScopeID)
			require.NoError(t, err)
			require.NotNil(t, parent)
			assert.Equal(t, f.ID, parent.FileID, "scope %d has a parent in another file", sc.ID)
		}
		assert.Equal(t, 1, roots, "%s: want exactly one outermost scope", f.Path)

		// A resolved occurrence names a declaration of an enclosing scope.
		occs, err := s.OccurrencesByFile(f.ID)
		require.NoError(t, err)
		for _, o := range occs {
			if o.DeclarationID == nil {
				continue
			}
			d, err := s.DeclarationByID(*o.DeclarationID)
			require.NoError(t, err)
			require.NotNil(t, d)
			assert.Equal(t, o.Name, d.Name)
			require.NotNil(t, o.ScopeID)
			assert.True(t, chainContains(t, e, *o.ScopeID, d.ScopeID),
				"%s:%d:%d: %s resolves outside its scope chain", f.Path, o.StartLine, o.StartCol, o.Name)
		}

		// Every declaration is reachable from the hierarchy at its own position.
		decls, err := s.DeclarationsByFile(f.ID)
		require.NoError(t, err)
		for _, d := range decls {
			root, err := q.ScopeHierarchyAt(f.Path, d.StartLine, d.StartCol)
			require.NoError(t, err)
			require.NotNil(t, root, "%s:%d:%d", f.Path, d.StartLine, d.StartCol)
			assert.NotNil(t, root.FindNode(d.Name, root.Height()+1),
				"%s:%d:%d: %s not in hierarchy", f.Path, d.StartLine, d.StartCol, d.Name)
		}
	}
}

func chainContains(t *testing.T, e *Engine, scopeID, want int64) bool {
	t.Helper()
	chain, err := e.Query().ScopeChain(scopeID)
	require.NoError(t, err)
	return slices.ContainsFunc(chain, func(sc *Scope) bool { return sc.ID == want })
}
