package main

import (
	"context"
	"fmt"

	"github.com/raminkhorsandi/framework/internal/formatter"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/shared"
	"github.com/raminkhorsandi/framework/internal/tasks"
	"github.com/urfave/cli/v3"
)

// IndexRebuild reindexes stored documents and removes deleted ones from the index.
func (r *Runner) IndexRebuild(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine()
	if err != nil {
		return err
	}

	progress, wait := r.followProgress()
	result, err := engine.Reindex(ctx, progress, tasks.ReindexOpts{
		State:   cmd.String("state"),
		Workers: cmd.Int("workers"),
	})
	wait()
	if err != nil {
		return err
	}

	r.writePlainln("Reindex complete")
	r.writePlain("  Indexed: %d/%d\n", result.Indexed, result.Total)
	r.writePlain("  Removed: %d\n", result.Removed)
	if result.Failed > 0 {
		r.writePlain("  Failed:  %d\n", result.Failed)
		for id, err := range result.Errors {
			r.logger.Warn("reindex failed", "id", id, "error", err)
		}
	}
	return nil
}

// IndexSearch queries the search index and prints the hit list.
func (r *Runner) IndexSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	indexer, err := r.searchIndex()
	if err != nil {
		return err
	}
	searcher, ok := indexer.(search.Searcher)
	if !ok {
		return fmt.Errorf("%w: search engine %q cannot be queried", shared.ErrNotImplemented, r.config.Search.Engine)
	}

	results, err := searcher.Search(query, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var data []byte
	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(results, true)
	case formatter.FormatCSV:
		data, err = formatter.ExportToCSV(results)
	case formatter.FormatMarkdown:
		data, err = formatter.ExportToMarkdown(fmt.Sprintf("Search: %s", query), results)
	case formatter.FormatText:
		data, err = formatter.ExportToText(results)
	default:
		return fmt.Errorf("%w: format %s is not supported for search results", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}
