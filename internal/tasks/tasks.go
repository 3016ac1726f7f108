// package tasks runs batch operations over stored documents.
//
// Operations emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/domain"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers = 4
	MaxWorkers     = 16
)

// ReindexOpts selects the documents to reindex.
type ReindexOpts struct {
	IDs     []int64 // Explicit ids. Empty means every document (in State, if set)
	State   string  // Server state filter, ignored when IDs is set
	Workers int     // Concurrent workers (default: 4)
}

// ReindexResult contains the outcome of a reindex run.
type ReindexResult struct {
	Total   int             // Documents considered
	Indexed int             // Documents added to the index
	Removed int             // Deleted or missing documents dropped from the index
	Failed  int             // Documents that could not be indexed
	Errors  map[int64]error // Failure per document id
}

// Engine runs batch operations against a library.
type Engine struct {
	lib     *domain.Library
	indexer search.Indexer
	logger  *log.Logger
}

// NewEngine creates an Engine. A nil indexer falls back to the library's indexer.
func NewEngine(lib *domain.Library, indexer search.Indexer) *Engine {
	if indexer == nil {
		indexer = lib.Indexer()
	}
	return &Engine{
		lib:     lib,
		indexer: indexer,
		logger:  lib.Logger().With("component", "tasks"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ids resolves the documents an operation works on.
func (e *Engine) ids(progress chan<- ProgressUpdate, ids []int64, state string) ([]int64, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	e.sendProgress(progress, collectIDsUpdate(state))

	var err error
	if state != "" {
		ids, err = e.lib.GetAllIdsByState(state)
	} else {
		ids, err = e.lib.GetAllIds(false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect document ids: %w", err)
	}
	e.sendProgress(progress, foundIDsUpdate(ids))
	return ids, nil
}

func workers(n int) int {
	if n <= 0 {
		return DefaultWorkers
	}
	return min(n, MaxWorkers)
}

// Reindex loads documents and hands them to the indexer. Deleted and missing documents are removed
// from the index instead. A failing document does not stop the run; cancelling ctx does.
func (e *Engine) Reindex(ctx context.Context, progress chan<- ProgressUpdate, opts ReindexOpts) (*ReindexResult, error) {
	if e.indexer == nil {
		return nil, fmt.Errorf("%w: no indexer", shared.ErrInvalidArgument)
	}

	ids, err := e.ids(progress, opts.IDs, opts.State)
	if err != nil {
		return nil, err
	}

	result := &ReindexResult{Total: len(ids), Errors: make(map[int64]error)}
	var (
		mu   sync.Mutex
		done int
	)
	record := func(id int64, removed bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		switch {
		case err != nil:
			result.Failed++
			result.Errors[id] = err
			e.sendProgress(progress, indexFailedUpdate(done, len(ids), id, err))
		case removed:
			result.Removed++
			e.sendProgress(progress, indexedUpdate(done, len(ids), id))
		default:
			result.Indexed++
			e.sendProgress(progress, indexedUpdate(done, len(ids), id))
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers(opts.Workers))

	for _, id := range ids {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}
			removed, err := e.reindexOne(id)
			if err != nil {
				e.logger.Warn("reindex failed", "id", id, "err", err)
			}
			record(id, removed, err)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	e.logger.Info("reindex finished", "total", result.Total, "indexed", result.Indexed, "removed", result.Removed, "failed", result.Failed)
	return result, nil
}

func (e *Engine) reindexOne(id int64) (removed bool, err error) {
	doc, err := e.lib.Document(id)
	if errors.Is(err, model.ErrNotFound) {
		return true, e.indexer.RemoveDocumentFromEntryIndex(id)
	}
	if err != nil {
		return false, err
	}
	if doc.ServerState() == domain.StateDeleted {
		return true, e.indexer.RemoveDocumentFromEntryIndex(id)
	}
	return false, e.indexer.AddDocument(doc)
}
