package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureGo = `package p

import (
	"fmt"
	str "strings"
)

func f(xs []int) {
	x := 1
	if x > 0 {
		x := 2
		fmt.Println(x)
	}
	for i, v := range xs {
		_ = i + v
	}
	str.ToUpper("a")
}
`

type envelope struct {
	Command    string          `json:"command"`
	Results    json.RawMessage `json:"results"`
	TotalCount *int            `json:"total_count"`
	Error      string          `json:"error"`
}

// run executes the CLI in process and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	cmd := a.root()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func runJSON(t *testing.T, args ...string) envelope {
	t.Helper()
	out, _, _ := run(t, args...)
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), "invalid JSON output: %s", out)
	return env
}

// indexFixture writes a.go into a temp dir and indexes it, returning the
// database path and the file path.
func indexFixture(t *testing.T) (db, file string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	file = filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte(fixtureGo), 0o644))
	db = filepath.Join(t.TempDir(), "idx", "index.db")

	env := runJSON(t, "--db", db, "index", dir)
	require.Empty(t, env.Error)
	var sum IndexSummary
	require.NoError(t, json.Unmarshal(env.Results, &sum))
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, 4, sum.Scopes)
	return db, file
}

func TestIndex_NotADirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	db := filepath.Join(t.TempDir(), "x.db")
	env := runJSON(t, "--db", db, "index", "/no/such/dir")
	assert.Equal(t, "index", env.Command)
	assert.Contains(t, env.Error, "directory not found")
}

func TestIndex_Force(t *testing.T) {
	db, file := indexFixture(t)
	env := runJSON(t, "--db", db, "index", "--force", filepath.Dir(file))
	require.Empty(t, env.Error)
	var sum IndexSummary
	require.NoError(t, json.Unmarshal(env.Results, &sum))
	assert.Equal(t, 1, sum.Files)
}

func TestHierarchy(t *testing.T) {
	db, file := indexFixture(t)

	env := runJSON(t, "--db", db, "hierarchy", file, "11", "14")
	require.Empty(t, env.Error)
	var root CLINode
	require.NoError(t, json.Unmarshal(env.Results, &root))
	assert.Equal(t, "file", root.Label)
	assert.Equal(t, "scope", root.Type)

	var labels []string
	for _, c := range root.Children {
		labels = append(labels, c.Label)
	}
	assert.Equal(t, []string{"fmt", "str", "f", "function f"}, labels)
	assert.Equal(t, "import", root.Children[0].Kind)

	fn := root.Children[3]
	require.Len(t, fn.Children, 3)
	assert.Equal(t, "if", fn.Children[2].Label)
	assert.Equal(t, 2, fn.Children[2].Depth)

	env = runJSON(t, "--db", db, "hierarchy", file, "500", "0")
	require.Empty(t, env.Error)
	assert.Equal(t, "null", string(env.Results))
}

func TestHierarchy_Text(t *testing.T) {
	db, file := indexFixture(t)

	out, _, err := run(t, "--db", db, "--format", "text", "hierarchy", file, "11", "14")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "file:"), out)
	assert.Contains(t, out, "  function f:")
	assert.Contains(t, out, "    x (variable)  8:1\n")
	assert.Contains(t, out, "      x (variable)  10:2\n")
}

func TestHierarchy_BadArgs(t *testing.T) {
	db, file := indexFixture(t)

	env := runJSON(t, "--db", db, "hierarchy", "--", file, "-1", "0")
	assert.Contains(t, env.Error, `invalid line "-1"`)

	env = runJSON(t, "--db", db, "hierarchy", file, "1", "abc")
	assert.Contains(t, env.Error, `invalid col "abc"`)
}

func TestFind(t *testing.T) {
	db, file := indexFixture(t)

	tests := []struct {
		name      string
		args      []string
		found     bool
		wantPath  []string
		wantDepth int
	}{
		{"default budget", []string{"x"}, true, []string{"file", "function f", "x"}, 2},
		{"budget too small", []string{"x", "--depth", "2"}, false, nil, 0},
		{"levels", []string{"x", "--depth", "2", "--levels"}, true, []string{"file", "function f", "x"}, 2},
		{"scope label", []string{"if"}, true, []string{"file", "function f", "if"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "find", file, "11", "14"}, tt.args...)
			env := runJSON(t, args...)
			require.Empty(t, env.Error)
			var res CLIFind
			require.NoError(t, json.Unmarshal(env.Results, &res))
			assert.Equal(t, tt.found, res.Found)
			assert.Equal(t, tt.wantPath, res.Path)
			assert.Equal(t, tt.wantDepth, res.Depth)
		})
	}
}

func TestFind_Suggestions(t *testing.T) {
	db, file := indexFixture(t)

	env := runJSON(t, "--db", db, "find", file, "11", "14", "fmtt", "--suggestions", "2")
	require.Empty(t, env.Error)
	var res CLIFind
	require.NoError(t, json.Unmarshal(env.Results, &res))
	assert.False(t, res.Found)
	require.NotEmpty(t, res.Suggestions)
	assert.LessOrEqual(t, len(res.Suggestions), 2)
	assert.Equal(t, "fmt", res.Suggestions[0].Label)

	out, _, err := run(t, "--db", db, "--format", "text", "find", file, "11", "14", "fmtt")
	require.NoError(t, err)
	assert.Contains(t, out, `"fmtt" not found`)
	assert.Contains(t, out, "did you mean: fmt (depth 1)")
}

func TestFiles(t *testing.T) {
	db, file := indexFixture(t)

	env := runJSON(t, "--db", db, "files", "--language", "go")
	require.Empty(t, env.Error)
	var files []CLIFile
	require.NoError(t, json.Unmarshal(env.Results, &files))
	require.Len(t, files, 1)
	assert.Equal(t, file, files[0].Path)
	assert.Equal(t, 18, files[0].LineCount)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 1, *env.TotalCount)

	env = runJSON(t, "--db", db, "files", "--order", "sideways")
	assert.Contains(t, env.Error, "invalid order")
}

func TestDeclarationsAndSearch(t *testing.T) {
	db, _ := indexFixture(t)

	env := runJSON(t, "--db", db, "search", "*", "--kinds", "import")
	require.Empty(t, env.Error)
	var imports []CLIDeclaration
	require.NoError(t, json.Unmarshal(env.Results, &imports))
	require.Len(t, imports, 2)
	assert.Equal(t, "fmt", imports[0].Name)
	assert.Equal(t, "file", imports[0].Scope)
	require.NotNil(t, imports[0].UseCount)
	assert.Equal(t, 1, *imports[0].UseCount)

	env = runJSON(t, "--db", db, "declarations", "1")
	require.Empty(t, env.Error)
	var decls []CLIDeclaration
	require.NoError(t, json.Unmarshal(env.Results, &decls))
	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"fmt", "str", "f"}, names)

	env = runJSON(t, "--db", db, "search", "", "--unused")
	require.Empty(t, env.Error)
	var unused []CLIDeclaration
	require.NoError(t, json.Unmarshal(env.Results, &unused))
	require.Len(t, unused, 1)
	assert.Equal(t, "f", unused[0].Name)

	env = runJSON(t, "--db", db, "declarations", "x")
	assert.Contains(t, env.Error, "invalid scope-id")
}

func TestSummary(t *testing.T) {
	db, _ := indexFixture(t)

	env := runJSON(t, "--db", db, "summary", "--top", "2")
	require.Empty(t, env.Error)
	var s CLISummary
	require.NoError(t, json.Unmarshal(env.Results, &s))
	require.Len(t, s.Languages, 1)
	assert.Equal(t, "go", s.Languages[0].Language)
	assert.Equal(t, 8, s.Languages[0].Declarations)
	assert.NotEmpty(t, s.IndexedAt)
	assert.LessOrEqual(t, len(s.TopDeclarations), 2)

	out, _, err := run(t, "--db", db, "--format", "text", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "go: 1 files, 18 lines, 4 scopes, 8 declarations")
	assert.Contains(t, out, "import=2")
}

func TestScript(t *testing.T) {
	db, file := indexFixture(t)

	env := runJSON(t, "--db", db, "script", "unused")
	require.Empty(t, env.Error)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(env.Results, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "f", rows[0]["name"])
	assert.Equal(t, file, rows[0]["file"])

	script := filepath.Join(t.TempDir(), "depth.risor")
	src := `h := scope_hierarchy(args["file"], args["line"], args["col"])
emit({"root": h.label})
`
	require.NoError(t, os.WriteFile(script, []byte(src), 0o644))
	env = runJSON(t, "--db", db, "script", script, "file="+file, "line=11", "col=14")
	require.Empty(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Results, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "file", rows[0]["root"])

	env = runJSON(t, "--db", db, "script", "nope")
	assert.NotEmpty(t, env.Error)

	env = runJSON(t, "--db", db, "script", "unused", "broken")
	assert.Contains(t, env.Error, "want key=value")

	env = runJSON(t, "script", "--list")
	var names []string
	require.NoError(t, json.Unmarshal(env.Results, &names))
	assert.Equal(t, []string{"shadowed", "unused"}, names)
}

func TestQuery_MissingDatabase(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	db := filepath.Join(t.TempDir(), "none.db")
	env := runJSON(t, "--db", db, "files")
	assert.Equal(t, "files", env.Command)
	assert.Contains(t, env.Error, "database not found")
	_, err := os.Stat(db)
	assert.True(t, os.IsNotExist(err))
}

func TestConfig_FileAndEnv(t *testing.T) {
	db, file := indexFixture(t)

	cfg := filepath.Join(t.TempDir(), "scopetree.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("format: text\ndb: "+db+"\n"), 0o644))
	out, _, err := run(t, "--config", cfg, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, file)

	t.Setenv("SCOPETREE_FORMAT", "json")
	env := runJSON(t, "--config", cfg, "files")
	assert.Equal(t, "files", env.Command)

	_, _, err = run(t, "--db", db, "--format", "xml", "files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be json or text")
}

func TestParseScriptArgs(t *testing.T) {
	t.Parallel()
	got, err := parseScriptArgs([]string{"file=a.go", "line=3", "kinds=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"file": "a.go", "line": int64(3), "kinds": "x=y"}, got)

	_, err = parseScriptArgs([]string{"=v"})
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
