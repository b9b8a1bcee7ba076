package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"

	"github.com/jward/scopetree/hierarchy"
	"github.com/jward/scopetree/internal/store"
)

// Hierarchies builds the ascendant scope hierarchy of a source position.
type Hierarchies interface {
	ScopeHierarchyAt(file string, line, col int) (*hierarchy.Node, error)
}

// Runtime embeds a Risor VM and exposes the scope index to report scripts.
type Runtime struct {
	store       *store.Store
	hierarchies Hierarchies
	scriptsDir  string
	fsys        fs.FS
	log         *logrus.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithHierarchies provides the scope_hierarchy and find_node globals.
func WithHierarchies(h Hierarchies) RuntimeOption {
	return func(r *Runtime) {
		r.hierarchies = h
	}
}

// WithLogger routes the script log object through l.
func WithLogger(l *logrus.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = l
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts directory.
// The Store may be nil, in which case only the non-index globals exist.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.New()
		r.log.SetOutput(io.Discard)
	}
	return r
}

// Row is one value passed to emit by a report script.
type Row = map[string]any

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// Report runs a script and collects every value it passes to emit.
// Non-map values are wrapped as {"value": v}.
func (r *Runtime) Report(ctx context.Context, scriptPath string, args map[string]any) ([]Row, error) {
	var (
		mu   sync.Mutex
		rows []Row
	)
	emit := object.NewBuiltin("emit", func(ctx context.Context, a ...object.Object) object.Object {
		if len(a) != 1 {
			return object.NewArgsError("emit", 1, len(a))
		}
		v := a[0].Interface()
		row, ok := v.(map[string]any)
		if !ok {
			row = Row{"value": v}
		}
		mu.Lock()
		rows = append(rows, row)
		mu.Unlock()
		return object.Nil
	})
	if args == nil {
		args = map[string]any{}
	}
	err := r.RunScript(ctx, scriptPath, map[string]any{"emit": emit, "args": args})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(label, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ReportScriptPath returns the path of a named report script.
func ReportScriptPath(name string) string {
	return filepath.Join("report", name+".risor")
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(label string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{entry: r.log.WithField("script", label)}),
	}

	if r.store != nil {
		globals["files"] = makeFilesFn(r.store)
		globals["scopes"] = makeScopesFn(r.store)
		globals["scope_chain"] = makeScopeChainFn(r.store)
		globals["declarations"] = makeDeclarationsFn(r.store)
		globals["occurrences"] = makeOccurrencesFn(r.store)
		globals["unused"] = makeUnusedFn(r.store)
		globals["unresolved"] = makeUnresolvedFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}
	if r.hierarchies != nil {
		globals["scope_hierarchy"] = makeScopeHierarchyFn(r.hierarchies)
		globals["find_node"] = makeFindNodeFn(r.hierarchies)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info/Warn/Error/Debug methods for Risor scripts.
type logObject struct {
	entry *logrus.Entry
}

func (l *logObject) Debug(msg string) { l.entry.Debug(msg) }
func (l *logObject) Info(msg string)  { l.entry.Info(msg) }
func (l *logObject) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logObject) Error(msg string) { l.entry.Error(msg) }
