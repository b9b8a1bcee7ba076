package scopetree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher re-indexes files under a root as they change on disk.
type Watcher struct {
	e      *Engine
	root   string
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending map[string]struct{}
}

// Watch starts watching root. Supported files that are created, written,
// renamed or removed are collected until no event arrives for the debounce
// period, then re-indexed or removed as a batch. Watch does not index the
// existing tree; call IndexDirectory first. Stop the watcher with Close or
// by cancelling ctx.
func (e *Engine) Watch(ctx context.Context, root string) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		e:       e,
		root:    root,
		fsw:     fsw,
		cancel:  cancel,
		pending: make(map[string]struct{}),
	}
	if err := w.addWatches(root); err != nil {
		cancel()
		fsw.Close()
		return nil, fmt.Errorf("watch: add watches under %s: %w", root, err)
	}

	w.wg.Add(1)
	go w.run(ctx)
	e.log.WithField("root", root).Info("watching")
	return w, nil
}

// Close stops the watcher and waits for an in-flight batch to finish.
func (w *Watcher) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

// addWatches adds a watch to every directory under dir. Symlinked
// directories are followed once.
func (w *Watcher) addWatches(dir string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true
		if err := w.fsw.Add(path); err != nil {
			w.e.log.WithError(err).WithField("dir", path).Warn("add watch failed")
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer w.fsw.Close()

	timer := time.NewTimer(w.e.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handle(ev) {
				timer.Reset(w.e.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.e.log.WithError(err).Warn("watch error")

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handle records ev and reports whether the debounce timer should restart.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	path := ev.Name
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if ev.Has(fsnotify.Create) && !skipDir(info.Name()) {
			if err := w.addWatches(path); err != nil {
				w.e.log.WithError(err).WithField("dir", path).Warn("watch new directory")
			}
			// Files created together with the directory produce no events.
			w.queueTree(path)
			return len(w.pending) > 0
		}
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if !w.e.wanted(w.root, path) {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

func (w *Watcher) queueTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.e.wanted(w.root, path) {
			w.pending[path] = struct{}{}
		}
		return nil
	})
}

// flush re-indexes pending paths that still exist and removes the rest.
func (w *Watcher) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	var indexed, removed []string
	for path := range w.pending {
		if _, err := os.Stat(path); err == nil {
			indexed = append(indexed, path)
		} else {
			removed = append(removed, path)
		}
	}
	clear(w.pending)
	sort.Strings(indexed)
	sort.Strings(removed)

	var errs []error
	if len(removed) > 0 {
		errs = append(errs, w.e.RemoveFiles(removed))
	}
	if len(indexed) > 0 {
		errs = append(errs, w.e.IndexFiles(ctx, indexed))
	}
	err := errors.Join(errs...)

	entry := w.e.log.WithFields(logrus.Fields{"indexed": len(indexed), "removed": len(removed)})
	if err != nil {
		entry.WithError(err).Warn("watch batch failed")
	} else {
		entry.Info("watch batch")
	}
	if w.e.indexHook != nil {
		w.e.indexHook(indexed, removed, err)
	}
}
