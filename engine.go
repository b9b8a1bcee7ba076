package scopetree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/jward/scopetree/internal/extract"
	strt "github.com/jward/scopetree/internal/runtime"
	"github.com/jward/scopetree/internal/store"
	"github.com/jward/scopetree/scripts"
)

// Metadata keys written after each indexing run.
const (
	MetaIndexedAt = "indexed_at"
	MetaLanguages = "languages"
)

// DefaultDebounce is the quiet period Watch waits for before re-indexing.
const DefaultDebounce = 200 * time.Millisecond

// IndexHook is called by Watch after each debounced batch with the paths
// that were re-indexed and removed, and the batch error if any.
type IndexHook func(indexed, removed []string, err error)

// Engine orchestrates the scopetree pipeline: file discovery, change
// detection, scope extraction and query access.
type Engine struct {
	store     *store.Store
	runtime   *strt.Runtime
	scriptsFS fs.FS
	log       *logrus.Logger
	languages map[string]bool // nil means all languages
	exclude   []string

	useParallel bool
	workers     int

	debounce  time.Duration
	indexHook IndexHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		if len(languages) == 0 {
			e.languages = nil
			return
		}
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// parses files on a worker pool and commits each file's rows from a single
// goroutine. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers sets the size of the parallel worker pool. Zero or less means
// one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExclude skips files whose path relative to the indexed root matches
// any of the doublestar patterns, e.g. "**/testdata/**".
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithLogger routes engine and script logging through l.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithDebounce sets the quiet period used by Watch.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithIndexHook registers a callback invoked after every Watch batch.
func WithIndexHook(h IndexHook) Option {
	return func(e *Engine) {
		e.indexHook = h
	}
}

// WithScriptsFS loads report scripts from fsys instead of the bundled
// scripts. Paths are resolved as "report/<name>.risor".
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("scopetree: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("scopetree: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		scriptsFS:   scripts.FS,
		useParallel: true,
		debounce:    DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetOutput(io.Discard)
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}

	e.runtime = strt.NewRuntime(s, "",
		strt.WithRuntimeFS(e.scriptsFS),
		strt.WithHierarchies(e.Query()),
		strt.WithLogger(e.log),
	)
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Stats returns row counts for the index.
func (e *Engine) Stats() (*Stats, error) {
	return e.store.Stats()
}

// Report runs the named report script and returns the rows it emitted.
func (e *Engine) Report(ctx context.Context, name string, args map[string]any) ([]strt.Row, error) {
	rows, err := e.runtime.Report(ctx, strt.ReportScriptPath(name), args)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	return rows, nil
}

// ReportFile runs a report script from disk. Imports resolve relative to
// the script's directory.
func (e *Engine) ReportFile(ctx context.Context, path string, args map[string]any) ([]strt.Row, error) {
	rt := strt.NewRuntime(e.store, filepath.Dir(path),
		strt.WithHierarchies(e.Query()),
		strt.WithLogger(e.log),
	)
	rows, err := rt.Report(ctx, filepath.Base(path), args)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", path, err)
	}
	return rows, nil
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// extraction runs on a worker pool with batched SQLite writes; otherwise
// files are indexed one at a time.
//
// For each file:
//  1. Detect language from extension
//  2. Skip unsupported or filtered-out languages
//  3. Skip unchanged files (same content hash)
//  4. Delete the stale record and its scopes, declarations and occurrences
//  5. Insert the new file record and extract into the store
//
// Errors on individual files are logged and collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	start := time.Now()
	var (
		n   int
		err error
	)
	if e.useParallel {
		n, err = e.indexFilesParallel(ctx, paths)
	} else {
		n, err = e.indexFilesSerial(ctx, paths)
	}
	if metaErr := e.recordMetadata(); metaErr != nil && err == nil {
		err = metaErr
	}
	e.log.WithFields(logrus.Fields{
		"files":    len(paths),
		"indexed":  n,
		"parallel": e.useParallel,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("index complete")
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (int, error) {
	var (
		errs    []error
		indexed int
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		ok, err := e.indexFile(ctx, path)
		if err != nil {
			e.log.WithError(err).WithField("path", path).Warn("index failed")
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if ok {
			indexed++
		}
	}
	if len(errs) > 0 {
		return indexed, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return indexed, nil
}

// indexFile extracts one file straight into the Store. It reports false
// when the file was skipped.
func (e *Engine) indexFile(ctx context.Context, path string) (bool, error) {
	item, skip, err := e.prepareFile(path)
	if err != nil || skip {
		return false, err
	}
	res, err := extract.Extract(ctx, e.store, item.fileID, item.path, item.content, item.lang)
	if err != nil {
		e.discard(item)
		return false, err
	}
	e.logExtracted(item, res)
	return true, nil
}

// prepareFile checks the language filter and content hash, removes stale
// data and inserts a fresh file record. skip is true when the file is
// unsupported, filtered out or unchanged.
func (e *Engine) prepareFile(path string) (item workItem, skip bool, err error) {
	lang, ok := extract.LanguageForFile(path)
	if !ok {
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[lang] {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.HashContent(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		e.log.WithField("path", path).Debug("unchanged")
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Language:    lang,
		Hash:        hash,
		LineCount:   extract.CountLines(content),
		LastIndexed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, lang: lang, fileID: fileID, content: content}, false, nil
}

// discard drops the record of a file whose extraction failed so the next
// run retries it instead of treating it as unchanged.
func (e *Engine) discard(item workItem) {
	if err := e.store.DeleteFile(item.fileID); err != nil {
		e.log.WithError(err).WithField("path", item.path).Warn("discard failed file")
	}
}

func (e *Engine) logExtracted(item workItem, res *extract.Result) {
	e.log.WithFields(logrus.Fields{
		"path":         item.path,
		"language":     item.lang,
		"scopes":       len(res.Scopes),
		"declarations": res.Declarations,
		"occurrences":  res.Occurrences,
		"unresolved":   res.Unresolved,
	}).Debug("extracted")
}

// recordMetadata stores the indexing time and the set of indexed languages.
func (e *Engine) recordMetadata() error {
	langs, err := e.distinctLanguages()
	if err != nil {
		return fmt.Errorf("list languages: %w", err)
	}
	if err := e.store.SetMetadata(MetaLanguages, strings.Join(langs, ",")); err != nil {
		return err
	}
	return e.store.SetMetadata(MetaIndexedAt, time.Now().UTC().Format(time.RFC3339))
}

// distinctLanguages returns all languages that have at least one file in
// the Store, sorted.
func (e *Engine) distinctLanguages() ([]string, error) {
	rows, err := e.store.DB().Query("SELECT DISTINCT language FROM files ORDER BY language")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

// RemoveFiles deletes the index data of the given paths. Paths that were
// never indexed are ignored.
func (e *Engine) RemoveFiles(paths []string) error {
	var errs []error
	for _, path := range paths {
		f, err := e.store.FileByPath(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		if f == nil {
			continue
		}
		if err := e.store.DeleteFile(f.ID); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		e.log.WithField("path", path).Debug("removed")
	}
	if len(errs) > 0 {
		return fmt.Errorf("removal had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// skipDirs are never descended into by the filesystem walk or the watcher.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory indexes every supported file under root and drops index
// data for files under root that no longer exist. Paths are stored
// absolute. If root is inside a git repository, git ls-files is used so
// .gitignore is respected; otherwise the filesystem is walked.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.log.WithError(err).Debug("git ls-files unavailable, walking")
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	if err := e.pruneMissing(root, paths); err != nil {
		return err
	}
	return e.IndexFiles(ctx, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if !e.wanted(root, absPath) {
			continue
		}
		// The index still lists files deleted from the worktree until the
		// deletion is staged.
		if _, err := os.Stat(absPath); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		paths = append(paths, absPath)
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem. Hidden
// directories and skipDirs are not descended into.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.wanted(root, path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// wanted reports whether path has a supported extension and matches no
// exclude pattern.
func (e *Engine) wanted(root, path string) bool {
	if _, ok := extract.LanguageForFile(path); !ok {
		return false
	}
	return !e.excluded(root, path)
}

// excluded matches path, relative to root and slash-separated, against the
// exclude patterns.
func (e *Engine) excluded(root, path string) bool {
	if len(e.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range e.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// pruneMissing removes indexed files under root that are not in present.
func (e *Engine) pruneMissing(root string, present []string) error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("list indexed files: %w", err)
	}
	keep := make(map[string]bool, len(present))
	for _, p := range present {
		keep[p] = true
	}
	prefix := root + string(filepath.Separator)
	var stale []string
	for _, f := range files {
		if strings.HasPrefix(f.Path, prefix) && !keep[f.Path] {
			stale = append(stale, f.Path)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	sort.Strings(stale)
	e.log.WithField("count", len(stale)).Info("pruning files no longer present")
	return e.RemoveFiles(stale)
}
