package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/raminkhorsandi/framework/internal/domain"
	"github.com/raminkhorsandi/framework/internal/formatter"
	"github.com/raminkhorsandi/framework/internal/shared"
	"github.com/raminkhorsandi/framework/internal/tasks"
	"github.com/urfave/cli/v3"
)

func parseID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: document id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: document id %q", shared.ErrInvalidArgument, s)
	}
	return id, nil
}

// followProgress prints progress updates until the returned channel is closed. wait blocks until
// every update has been written.
func (r *Runner) followProgress() (progress chan tasks.ProgressUpdate, wait func()) {
	progress = make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.CollectIDs, tasks.WriteManifest:
				r.writePlain("📥 %s\n", update.Message)
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return progress, func() {
		close(progress)
		<-done
	}
}

// DocumentShow prints one document in the requested format.
func (r *Runner) DocumentShow(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	lib, err := r.library()
	if err != nil {
		return err
	}
	doc, err := lib.Document(id)
	if err != nil {
		return fmt.Errorf("failed to load document %d: %w", id, err)
	}

	data, err := formatter.Export(doc, format)
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}
	return r.writeBytes(data)
}

type documentListing struct {
	ID     int64    `json:"id"`
	Titles []string `json:"titles"`
}

// DocumentList prints document ids with their main titles, sorted by the given keys.
func (r *Runner) DocumentList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	var opts []domain.SortOption
	for _, key := range cmd.StringSlice("sort") {
		opts = append(opts, domain.SortOption{Key: key, Reverse: cmd.Bool("reverse")})
	}

	var ids []int64
	if state := cmd.String("state"); state != "" {
		ids, err = lib.GetAllDocumentIdsSortedByState(state, opts...)
	} else {
		ids, err = lib.GetAllDocumentIdsSorted(opts...)
	}
	if err != nil {
		return err
	}

	titles, err := lib.GetAllDocumentTitles(ids...)
	if err != nil {
		return err
	}

	listing := make([]documentListing, 0, len(ids))
	for _, id := range ids {
		listing = append(listing, documentListing{ID: id, Titles: titles[id]})
	}

	if cmd.Bool("json") {
		return r.writeJSON(listing, true)
	}

	r.writePlainHeader(fmt.Sprintf("Documents (%d)", len(listing)))
	for _, l := range listing {
		r.writePlain("%6d  %s\n", l.ID, strings.Join(l.Titles, " | "))
	}
	return nil
}

// DocumentIDs prints the ids selected by state, type and date range, or the latest published ids.
func (r *Runner) DocumentIDs(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	var ids []int64
	if n := cmd.Int("latest"); n > 0 {
		ids, err = lib.GetLatestIds(n)
	} else {
		restriction := domain.OaiRestriction{
			ServerState: cmd.StringSlice("state"),
			Type:        cmd.StringSlice("type"),
		}
		if from, until := cmd.String("from"), cmd.String("until"); from != "" || until != "" {
			restriction.Date = &domain.DateRange{From: from, Until: until}
		}
		ids, err = lib.GetIdsOfOaiRequest(restriction)
	}
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := r.writePlain("%d\n", id); err != nil {
			return err
		}
	}
	return nil
}

// DocumentDelete marks a document deleted, or removes it with --permanent.
func (r *Runner) DocumentDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	lib, err := r.library()
	if err != nil {
		return err
	}
	doc, err := lib.Document(id)
	if err != nil {
		return fmt.Errorf("failed to load document %d: %w", id, err)
	}

	if cmd.Bool("permanent") {
		if err := doc.DeletePermanent(); err != nil {
			return fmt.Errorf("failed to delete document %d: %w", id, err)
		}
		r.logger.Info("document removed", "id", id)
		return r.writePlain("✓ Document %d removed\n", id)
	}

	if err := doc.Delete(); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	r.logger.Info("document marked deleted", "id", id)
	return r.writePlain("✓ Document %d marked deleted\n", id)
}

// DocumentExport writes documents to files, one per document, plus a manifest.
func (r *Runner) DocumentExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	engine, err := r.engine()
	if err != nil {
		return err
	}

	progress, wait := r.followProgress()
	result, err := engine.BulkExport(ctx, progress, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		State:      cmd.String("state"),
	})
	wait()
	if err != nil {
		return err
	}

	r.writePlainln("Export complete")
	r.writePlain("  Directory: %s\n", result.OutputDirectory)
	r.writePlain("  Exported:  %d/%d\n", result.SuccessfulExports, result.TotalDocuments)
	if result.FailedExports > 0 {
		r.writePlain("  Failed:    %d\n", result.FailedExports)
	}
	r.writePlain("  Manifest:  %s\n", result.ManifestPath)
	return nil
}
