package scopetree

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jward/scopetree/internal/extract"
	"github.com/jward/scopetree/internal/store"
)

// workItem holds everything a parallel extraction worker needs.
type workItem struct {
	path    string
	lang    string
	fileID  int64
	content []byte
	batch   *store.BatchedStore
}

// indexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse and extract into per-file BatchedStores.
//	Phase C (serial):   Commit batches to SQLite in input order.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) (int, error) {
	var (
		errs    []error
		indexed int
	)

	// ---- Phase A: Serial file preparation ----
	// A file that cannot be prepared is reported and skipped; the rest of
	// the batch still goes through.
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			e.log.WithError(err).WithField("path", path).Warn("prepare failed")
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		item.batch = store.NewBatchedStore()
		items = append(items, item)
	}

	// ---- Phase B: Parallel extraction ----
	type result struct {
		res *extract.Result
		err error
	}
	results := make([]result, len(items))

	var g errgroup.Group
	g.SetLimit(max(1, min(e.workers, len(items))))
	for i := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			item := items[i]
			res, err := extract.Extract(ctx, item.batch, item.fileID, item.path, item.content, item.lang)
			results[i] = result{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	// ---- Phase C: Serial commit ----
	for i, item := range items {
		if err := results[i].err; err != nil {
			e.discard(item)
			e.log.WithError(err).WithField("path", item.path).Warn("extract failed")
			errs = append(errs, fmt.Errorf("extract %s: %w", item.path, err))
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			e.discard(item)
			e.log.WithError(err).WithField("path", item.path).Warn("commit failed")
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			continue
		}
		e.logExtracted(item, results[i].res)
		indexed++
	}

	if len(errs) > 0 {
		return indexed, fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return indexed, nil
}
