// Package tasks runs batch operations over the documents of a [domain.Library] with progress reporting.
//
// # Core Operations
//
// [Engine] provides two operations:
//
//  1. [Engine.Reindex] : Rebuild the search index
//     - Collects document ids (all, by server state or explicit)
//     - Loads documents with a bounded errgroup
//     - Adds stored documents to the [search.Indexer]
//     - Removes deleted and missing documents from the index
//
//  2. [Engine.BulkExport] : Export documents to files
//     - Renders each document with the formatter (json, yaml, xml, csv, markdown, txt)
//     - Writes one file per document into the output directory
//     - Writes export_manifest.json summarizing successes and failures
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters and messages.
// Updates use select with default to prevent blocking.
//
// Failing documents never abort a run; they are recorded in the result. Cancelling the context does.
package tasks
