package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	CollectIDs Phase = iota
	IndexDocuments
	ExportDocuments
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case CollectIDs:
		return "collect_ids"
	case IndexDocuments:
		return "index_documents"
	case ExportDocuments:
		return "export_documents"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func collectIDsUpdate(state string) ProgressUpdate {
	msg := "Collecting document ids..."
	if state != "" {
		msg = fmt.Sprintf("Collecting %s document ids...", state)
	}
	return ProgressUpdate{
		Phase:   CollectIDs,
		Step:    0,
		Total:   1,
		Message: msg,
	}
}

func foundIDsUpdate(ids []int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CollectIDs,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d documents", len(ids)),
		Data:    ids,
	}
}

func indexedUpdate(step, total int, id int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IndexDocuments,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ indexed document %d", step, total, id),
	}
}

func indexFailedUpdate(step, total int, id int64, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IndexDocuments,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ document %d: %v", step, total, id, err),
	}
}

func exportCompletedUpdate(step, total int, id int64, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDocuments,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ document %d (%d files)", step, total, id, filesCount),
	}
}

func exportFailedUpdate(step, total int, id int64, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDocuments,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ document %d: %v", step, total, id, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing manifest to %s", path),
	}
}
