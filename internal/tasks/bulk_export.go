package tasks

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/raminkhorsandi/framework/internal/formatter"
)

// BulkExportOpts contains configuration for bulk document exports.
type BulkExportOpts struct {
	Format     formatter.Format // Export format (default: json)
	OutputDir  string           // Base output directory (default: opus_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 4)
	IDs        []int64          // Explicit ids. Empty means every document (in State, if set)
	State      string           // Server state filter, ignored when IDs is set
}

// DocumentExportResult is the outcome of exporting one document.
type DocumentExportResult struct {
	DocumentID int64
	Title      string
	Success    bool
	Files      []string
	Error      error
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalDocuments    int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []DocumentExportResult
}

// Manifest converts the result into its manifest form, ordered by document id.
func (r *BulkExportResult) Manifest(f formatter.Format) *formatter.Manifest {
	m := &formatter.Manifest{
		Format:          f,
		OutputDirectory: r.OutputDirectory,
		TotalDocuments:  r.TotalDocuments,
		Documents:       make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	results := slices.Clone(r.Results)
	slices.SortFunc(results, func(a, b DocumentExportResult) int { return cmp.Compare(a.DocumentID, b.DocumentID) })
	for _, res := range results {
		m.Add(res.DocumentID, res.Title, res.Files, res.Error)
	}
	return m
}

// BulkExport exports documents concurrently, one file per document, and writes a manifest
// summarizing the run into the output directory.
//
// Documents are loaded and rendered by a pool of workers. A failing document is recorded in the
// result and does not stop the export.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !slices.Contains(formatter.Formats, opts.Format) {
		return nil, fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("opus_export_%d", time.Now().Unix())
	}
	opts.NumWorkers = workers(opts.NumWorkers)

	ids, err := e.ids(prog, opts.IDs, opts.State)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalDocuments:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]DocumentExportResult, 0, len(ids)),
	}

	jobs := make(chan int64, len(ids))
	results := make(chan DocumentExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.DocumentID, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.DocumentID, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	e.sendProgress(prog, manifestUpdate(manifestPath))
	if err := formatter.WriteBulkExportManifest(result.Manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("export finished", "dir", opts.OutputDir, "ok", result.SuccessfulExports, "failed", result.FailedExports)
	return result, nil
}

// exportWorker exports documents from the jobs channel until it is drained.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan int64,
	results chan<- DocumentExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for id := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.exportDocument(id, opts)
	}
}

// exportDocument renders one document and writes it to {OutputDir}/{id}.{ext}.
func (e *Engine) exportDocument(id int64, opts BulkExportOpts) DocumentExportResult {
	result := DocumentExportResult{DocumentID: id, Files: []string{}}

	doc, err := e.lib.Document(id)
	if err != nil {
		result.Error = fmt.Errorf("failed to load document: %w", err)
		return result
	}
	result.Title = doc.DisplayName()

	data, err := formatter.Export(doc, opts.Format)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}

	path := filepath.Join(opts.OutputDir, strconv.FormatInt(id, 10)+"."+opts.Format.Extension())
	if err := formatter.WriteExport(data, path); err != nil {
		result.Error = err
		return result
	}
	result.Files = []string{path}
	result.Success = true
	return result
}
