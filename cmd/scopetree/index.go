package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/scopetree"
)

func (a *app) indexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory tree",
		Long: "Parses supported source files with tree-sitter and records their scopes, declarations " +
			"and name occurrences. Unchanged files are skipped; files that disappeared are removed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runIndex(cmd.Context(), args, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete the database and reindex from scratch")
	addIndexFlags(cmd)
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a directory tree and keep the index current",
		Long:  "Indexes the tree, then re-indexes files as they change until interrupted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), args)
		},
	}
	addIndexFlags(cmd)
	cmd.Flags().Duration("watch-debounce", 200*time.Millisecond, "quiet period before a batch of changes is indexed")
	return cmd
}

func addIndexFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("languages", nil, "language filter (e.g. go,python)")
	f.StringSlice("exclude", nil, "doublestar patterns relative to the root (e.g. 'vendor/**')")
	f.Bool("parallel", true, "extract files on a worker pool")
	f.Int("workers", 0, "worker pool size (default: one per CPU)")
}

// IndexSummary reports what an index run left in the database.
type IndexSummary struct {
	Root         string `json:"root"`
	DB           string `json:"db"`
	Files        int    `json:"files"`
	Scopes       int    `json:"scopes"`
	Declarations int    `json:"declarations"`
	Occurrences  int    `json:"occurrences"`
	Unresolved   int    `json:"unresolved"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

func (a *app) runIndex(ctx context.Context, args []string, force bool) error {
	start := time.Now()
	root, err := resolveTargetDir(args)
	if err != nil {
		return a.outputError("index", err)
	}

	if force {
		if err := os.Remove(a.cfg.DB); err != nil && !os.IsNotExist(err) {
			return a.outputError("index", fmt.Errorf("removing database for --force: %w", err))
		}
		a.log.WithField("db", a.cfg.DB).Info("cleared database")
	}

	e, err := a.openEngine()
	if err != nil {
		return a.outputError("index", err)
	}
	defer e.Close()

	if err := e.IndexDirectory(ctx, root); err != nil {
		return a.outputError("index", fmt.Errorf("indexing: %w", err))
	}
	summary, err := a.summarize(e, root, start)
	if err != nil {
		return a.outputError("index", err)
	}
	return a.outputResult(CLIResult{Command: "index", Results: summary})
}

func (a *app) summarize(e *scopetree.Engine, root string, start time.Time) (IndexSummary, error) {
	st, err := e.Stats()
	if err != nil {
		return IndexSummary{}, fmt.Errorf("stats: %w", err)
	}
	return IndexSummary{
		Root:         root,
		DB:           a.cfg.DB,
		Files:        st.Files,
		Scopes:       st.Scopes,
		Declarations: st.Declarations,
		Occurrences:  st.Occurrences,
		Unresolved:   st.Unresolved,
		ElapsedMS:    time.Since(start).Milliseconds(),
	}, nil
}

func (a *app) runWatch(ctx context.Context, args []string) error {
	root, err := resolveTargetDir(args)
	if err != nil {
		return a.outputError("watch", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hook := func(indexed, removed []string, err error) {
		entry := a.log.WithField("indexed", len(indexed)).WithField("removed", len(removed))
		if err != nil {
			entry.WithError(err).Warn("batch failed")
			return
		}
		entry.Info("batch indexed")
	}
	e, err := a.openEngine(scopetree.WithIndexHook(hook))
	if err != nil {
		return a.outputError("watch", err)
	}
	defer e.Close()

	start := time.Now()
	if err := e.IndexDirectory(ctx, root); err != nil {
		return a.outputError("watch", fmt.Errorf("indexing: %w", err))
	}
	w, err := e.Watch(ctx, root)
	if err != nil {
		return a.outputError("watch", err)
	}
	<-ctx.Done()
	if err := w.Close(); err != nil {
		return a.outputError("watch", err)
	}

	summary, err := a.summarize(e, root, start)
	if err != nil {
		return a.outputError("watch", err)
	}
	return a.outputResult(CLIResult{Command: "watch", Results: summary})
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := resolveFilePath(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
