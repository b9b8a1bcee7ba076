package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopetree/internal/store"
	"github.com/jward/scopetree/symtab"
)

func extractSource(t *testing.T, lang, src string) (*Result, *store.BatchedStore) {
	t.Helper()
	b := store.NewBatchedStore()
	res, err := Extract(context.Background(), b, 1, "test."+lang, []byte(src), lang)
	require.NoError(t, err)
	require.NotNil(t, res.Root)
	return res, b
}

func declNames(sc *symtab.Scope) []string {
	var out []string
	for _, e := range sc.Table() {
		out = append(out, e.Declaration.Name)
	}
	return out
}

func scopeLabels(res *Result) []string {
	var out []string
	for _, sc := range res.Scopes {
		out = append(out, sc.String())
	}
	return out
}

func findScope(t *testing.T, res *Result, label string) *symtab.Scope {
	t.Helper()
	for _, sc := range res.Scopes {
		if sc.String() == label {
			return sc
		}
	}
	t.Fatalf("scope %q not found in %v", label, scopeLabels(res))
	return nil
}

func usesOf(sc *symtab.Scope, name string) int {
	d := sc.Declared(name)
	if d == nil {
		return -1
	}
	return len(sc.Occurrences(d))
}

// =============================================================================
// Go
// =============================================================================

func TestExtract_GoClosures(t *testing.T) {
	t.Parallel()
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "go", "level-07-closures-higher-order", "src", "closures.go"))
	require.NoError(t, err)

	res, _ := extractSource(t, "go", string(src))

	assert.Equal(t, []string{"file", "function Apply", "function Adder", "function", "function main"}, scopeLabels(res))
	assert.Equal(t, []string{"Apply", "Adder", "main"}, declNames(res.Root))
	assert.Equal(t, 1, usesOf(res.Root, "Adder"))
	assert.Equal(t, 1, usesOf(res.Root, "Apply"))

	apply := findScope(t, res, "function Apply")
	assert.Equal(t, []string{"fn", "x"}, declNames(apply))
	assert.Equal(t, 1, usesOf(apply, "fn"))

	adder := findScope(t, res, "function Adder")
	assert.Equal(t, []string{"n"}, declNames(adder))
	assert.Equal(t, 1, usesOf(adder, "n"), "closure captures n")

	lit := res.Scopes[3]
	assert.Same(t, adder, lit.Enclosing())
	assert.Equal(t, []string{"x"}, declNames(lit))

	main := findScope(t, res, "function main")
	assert.Equal(t, []string{"add5", "result"}, declNames(main))
	assert.Equal(t, 1, usesOf(main, "add5"))
	assert.Equal(t, 1, usesOf(main, "result"))

	// int is predeclared and never bound.
	assert.Positive(t, res.Unresolved)
	assert.Equal(t, 17, res.LineCount)
}

const goShadowSrc = `package p

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

func TestExtract_GoBlocksAndShadowing(t *testing.T) {
	t.Parallel()
	res, _ := extractSource(t, "go", goShadowSrc)

	assert.Equal(t, []string{"file", "function f", "if", "for"}, scopeLabels(res))
	assert.Equal(t, []string{"fmt", "str", "f"}, declNames(res.Root))
	assert.Equal(t, 1, usesOf(res.Root, "fmt"))
	assert.Equal(t, 1, usesOf(res.Root, "str"))

	fn := findScope(t, res, "function f")
	assert.Equal(t, []string{"xs", "x"}, declNames(fn))
	assert.Equal(t, 1, usesOf(fn, "x"), "condition sees the outer x")
	assert.Equal(t, 1, usesOf(fn, "xs"))

	ifScope := findScope(t, res, "if")
	assert.Equal(t, []string{"x"}, declNames(ifScope), "consequence block folds into the if scope")
	assert.Equal(t, 1, usesOf(ifScope, "x"))
	assert.Equal(t, symtab.Position{Line: 10, Col: 2}, ifScope.Declared("x").Span.Start)

	forScope := findScope(t, res, "for")
	assert.Equal(t, []string{"i", "v"}, declNames(forScope))
	assert.Equal(t, 1, usesOf(forScope, "i"))
	assert.Equal(t, 1, usesOf(forScope, "v"))
}

func TestExtract_GoRedeclarationBecomesUse(t *testing.T) {
	t.Parallel()
	res, _ := extractSource(t, "go", `package p

func g() {
	a, err := one()
	b, err := two()
	_, _ = a, b
}
`)
	g := findScope(t, res, "function g")
	assert.Equal(t, []string{"a", "err", "b"}, declNames(g))
	assert.Equal(t, 1, usesOf(g, "err"))
}

// =============================================================================
// Python
// =============================================================================

const pySrc = `import os.path
from collections import OrderedDict as OD

def outer(a, b=1, *args, **kw):
    total = a + b
    def inner(c):
        return total + c
    return inner(helper())

def helper():
    return [y * 2 for y in range(3)]

class Box:
    def get(self):
        return self.value
`

func TestExtract_Python(t *testing.T) {
	t.Parallel()
	res, _ := extractSource(t, "python", pySrc)

	assert.Equal(t, []string{
		"module", "function outer", "function inner", "function helper",
		"comprehension", "class Box", "function get",
	}, scopeLabels(res))
	assert.Equal(t, []string{"os", "OD", "outer", "helper", "Box"}, declNames(res.Root))
	assert.Equal(t, 1, usesOf(res.Root, "helper"), "module functions bind before their definition")

	outer := findScope(t, res, "function outer")
	assert.Equal(t, []string{"a", "b", "args", "kw", "total", "inner"}, declNames(outer))
	assert.Equal(t, 1, usesOf(outer, "total"))
	assert.Equal(t, 1, usesOf(outer, "inner"))

	comp := findScope(t, res, "comprehension")
	assert.Equal(t, []string{"y"}, declNames(comp))
	assert.Equal(t, 1, usesOf(comp, "y"))

	get := findScope(t, res, "function get")
	assert.Equal(t, []string{"self"}, declNames(get))
	assert.Equal(t, 1, usesOf(get, "self"))
	assert.Equal(t, []string{"get"}, declNames(findScope(t, res, "class Box")))
}

// =============================================================================
// JavaScript
// =============================================================================

const jsSrc = `import React, { useState as useS, useEffect } from "react";
import * as util from "./util";

function main(a, { b, c: d }, ...rest) {
  const [x, y] = [a, b];
  for (let i = 0; i < 3; i++) {
    console.log(i, d, rest);
  }
  const add = n => n + x;
  return add(y) + helper();
}

function helper() {
  return util.value;
}
`

func TestExtract_JavaScript(t *testing.T) {
	t.Parallel()
	res, _ := extractSource(t, "javascript", jsSrc)

	assert.Equal(t, []string{"program", "function main", "for", "function", "function helper"}, scopeLabels(res))
	assert.Equal(t, []string{"React", "useS", "useEffect", "util", "main", "helper"}, declNames(res.Root))
	assert.Equal(t, 1, usesOf(res.Root, "helper"))
	assert.Equal(t, 1, usesOf(res.Root, "util"))

	main := findScope(t, res, "function main")
	assert.Equal(t, []string{"a", "b", "d", "rest", "x", "y", "add"}, declNames(main))
	assert.Equal(t, 1, usesOf(main, "x"))
	assert.Equal(t, 1, usesOf(main, "add"))

	forScope := findScope(t, res, "for")
	assert.Equal(t, []string{"i"}, declNames(forScope))
	assert.Equal(t, 3, usesOf(forScope, "i"))

	arrow := res.Scopes[3]
	assert.Equal(t, []string{"n"}, declNames(arrow))
	assert.Equal(t, 1, usesOf(arrow, "n"))
}

// =============================================================================
// Writing
// =============================================================================

func TestExtract_BatchIDsAreConsistent(t *testing.T) {
	t.Parallel()
	res, b := extractSource(t, "go", goShadowSrc)

	assert.Len(t, b.Scopes, len(res.Scopes))
	assert.Nil(t, b.Scopes[0].ParentScopeID)
	for _, sc := range b.Scopes[1:] {
		require.NotNil(t, sc.ParentScopeID)
		assert.Negative(t, *sc.ParentScopeID)
	}
	assert.Len(t, b.Declarations, res.Declarations)
	assert.Len(t, b.Occurrences, res.Occurrences)

	unresolved := 0
	for _, o := range b.Occurrences {
		if o.DeclarationID == nil {
			unresolved++
		}
	}
	assert.Equal(t, res.Unresolved, unresolved)
}

func TestExtract_IntoStore(t *testing.T) {
	t.Parallel()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	f := &store.File{Path: "p.go", Language: "go", Hash: "h", LastIndexed: time.Now()}
	_, err = s.InsertFile(f)
	require.NoError(t, err)

	res, err := Extract(context.Background(), s, f.ID, f.Path, []byte(goShadowSrc), "go")
	require.NoError(t, err)

	// Innermost scope at `fmt.Println(x)` is the if scope.
	sc, err := s.InnermostScopeAt(f.ID, 11, 14)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "if", sc.Kind)

	chain, err := s.ScopeChain(sc.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, res.Root.ID, chain[2].ID)

	decls, err := s.DeclarationsByScope(res.Root.ID)
	require.NoError(t, err)
	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"fmt", "str", "f"}, names)
}

func TestExtract_UnsupportedLanguage(t *testing.T) {
	t.Parallel()
	_, err := Extract(context.Background(), store.NewBatchedStore(), 1, "a.rb", []byte("x = 1"), "ruby")
	assert.Error(t, err)
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"pkg/mod.py", "python", true},
		{"web/App.JSX", "javascript", true},
		{"lib.rs", "", false},
	}
	for _, tt := range tests {
		got, ok := LanguageForFile(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
	assert.Equal(t, []string{"go", "javascript", "python"}, Languages())
}
