package scopetree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// benchGoSource is a mid-sized Go file with nested closures, loops and
// shadowing, so hierarchies are several levels deep.
const benchGoSource = `package bench

import (
	"fmt"
	"strings"
)

type Config struct {
	Name     string
	MaxRetry int
	Tags     []string
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("max_retry must be non-negative")
	}
	return nil
}

func (c *Config) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func Retry(c *Config, op func(int) error) error {
	var last error
	for attempt := 0; attempt < c.MaxRetry; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		last = err
		if wrapped := fmt.Errorf("attempt %d: %w", attempt, err); wrapped != nil {
			last := wrapped
			_ = last
		}
	}
	return last
}

func Counter() func() int {
	n := 0
	return func() int {
		n++
		step := func(k int) int {
			if k > 10 {
				k := k / 2
				return k
			}
			return k
		}
		return step(n)
	}
}

func Join(parts []string, sep string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		switch p {
		case "":
			continue
		default:
			s := strings.TrimSpace(p)
			b.WriteString(s)
		}
	}
	return b.String()
}
`

// benchInnerLine and benchInnerCol point at "return k" inside the innermost
// if of Counter.
const (
	benchInnerLine = 55
	benchInnerCol  = 4
)

func newBenchEngine(b *testing.B, opts ...Option) (*Engine, string) {
	b.Helper()
	dir := b.TempDir()
	e, err := New(filepath.Join(b.TempDir(), "bench.db"), opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { e.Close() })
	path := filepath.Join(dir, "bench.go")
	if err := os.WriteFile(path, []byte(benchGoSource), 0o644); err != nil {
		b.Fatal(err)
	}
	return e, path
}

func benchmarkIndexCorpus(b *testing.B, parallel bool) {
	dirs := corpusDirs(b)
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		e, err := New(filepath.Join(b.TempDir(), "bench.db"), WithParallel(parallel))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
		for _, src := range dirs {
			if err := e.IndexDirectory(ctx, src); err != nil {
				e.Close()
				b.Fatal(err)
			}
		}
		b.StopTimer()
		e.Close()
		b.StartTimer()
	}
}

// BenchmarkIndexCorpus_Serial and _Parallel index all testdata programs
// into a fresh database.
func BenchmarkIndexCorpus_Serial(b *testing.B)   { benchmarkIndexCorpus(b, false) }
func BenchmarkIndexCorpus_Parallel(b *testing.B) { benchmarkIndexCorpus(b, true) }

// BenchmarkReindexUnchanged measures the hash check that skips files whose
// content is already indexed.
func BenchmarkReindexUnchanged(b *testing.B) {
	e, path := newBenchEngine(b)
	ctx := context.Background()
	if err := e.IndexFiles(ctx, []string{path}); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.IndexFiles(ctx, []string{path}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkScopeHierarchyAt measures loading a scope chain from the store
// and building its hierarchy.
func BenchmarkScopeHierarchyAt(b *testing.B) {
	e, path := newBenchEngine(b)
	if err := e.IndexFiles(context.Background(), []string{path}); err != nil {
		b.Fatal(err)
	}
	q := e.Query()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root, err := q.ScopeHierarchyAt(path, benchInnerLine, benchInnerCol)
		if err != nil {
			b.Fatal(err)
		}
		if root == nil {
			b.Fatal("no hierarchy at benchmark position")
		}
	}
}

// BenchmarkFindAndSuggest measures a miss followed by ranking suggestions
// over an already built hierarchy.
func BenchmarkFindAndSuggest(b *testing.B) {
	e, path := newBenchEngine(b)
	if err := e.IndexFiles(context.Background(), []string{path}); err != nil {
		b.Fatal(err)
	}
	q := e.Query()
	root, err := q.ScopeHierarchyAt(path, benchInnerLine, benchInnerCol)
	if err != nil || root == nil {
		b.Fatalf("hierarchy: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if root.FindNode("setp", 16) != nil {
			b.Fatal("unexpected match")
		}
		if len(q.Suggest(root, "setp", 5)) == 0 {
			b.Fatal("no suggestions")
		}
	}
}
