// package formatter exports documents and hit lists to JSON, YAML, XML, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatXML      Format = "xml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatXML, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat reads a format name. "md", "yml" and "text" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xml":
		return FormatXML, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// Extension returns the file extension used for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ExportToJSON converts a model with its field values to indented JSON
func ExportToJSON(m model.Model) ([]byte, error) {
	arr, err := m.ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", m.ResourceID(), err)
	}
	return shared.MarshalJSON(arr, true)
}

// ExportToYAML converts a model with its field values to YAML
func ExportToYAML(m model.Model) ([]byte, error) {
	arr, err := m.ToArray()
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", m.ResourceID(), err)
	}
	data, err := yaml.Marshal(arr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return data, nil
}

// ExportToXML converts a model to its <Opus> XML form
func ExportToXML(m model.Model) ([]byte, error) {
	return model.ToXML(m)
}

// ExportToCSV converts a hit list to CSV with columns: ID, Title, Authors, Year
func ExportToCSV(results []search.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Authors", "Year"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range results {
		record := []string{
			strconv.FormatInt(r.ID, 10),
			title(r),
			strings.Join(r.Authors, "; "),
			r.Year,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a hit list to a Markdown list under heading
func ExportToMarkdown(heading string, results []search.Result) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", heading)
	fmt.Fprintf(&buf, "**Documents**: %d\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&buf, "%d. %s", i+1, title(r))
		if len(r.Authors) > 0 {
			fmt.Fprintf(&buf, " - %s", strings.Join(r.Authors, "; "))
		}
		if r.Year != "" {
			fmt.Fprintf(&buf, " (%s)", r.Year)
		}
		fmt.Fprintf(&buf, " [#%d]\n", r.ID)
		if r.AbstractDeu != "" || r.AbstractEng != "" {
			abstract := r.AbstractDeu
			if abstract == "" {
				abstract = r.AbstractEng
			}
			fmt.Fprintf(&buf, "\n   > %s\n\n", abstract)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a hit list to plain text
func ExportToText(results []search.Result) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Documents: %d\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&buf, "%d. %s", r.ID, title(r))
		if len(r.Authors) > 0 {
			fmt.Fprintf(&buf, " - %s", strings.Join(r.Authors, "; "))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// Export renders a stored document in format f. Tabular formats render the document's hit list entry.
func Export(doc model.Persistent, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(doc)
	case FormatYAML:
		return ExportToYAML(doc)
	case FormatXML:
		return ExportToXML(doc)
	}

	r, err := search.FromModel(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to shape %s: %w", doc.ResourceID(), err)
	}
	switch f {
	case FormatCSV:
		return ExportToCSV([]search.Result{r})
	case FormatMarkdown:
		return ExportToMarkdown(title(r), []search.Result{r})
	case FormatText:
		return ExportToText([]search.Result{r})
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// WriteExport writes data to path, creating missing directories.
func WriteExport(data []byte, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ManifestEntry describes the export of one document.
type ManifestEntry struct {
	DocumentID int64    `json:"document_id"`
	Title      string   `json:"title,omitempty"`
	Status     string   `json:"status"`
	Files      []string `json:"files,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	Format            Format          `json:"format"`
	OutputDirectory   string          `json:"output_directory"`
	TotalDocuments    int             `json:"total_documents"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Documents         []ManifestEntry `json:"documents"`
}

// Add records the outcome of one document export and updates the counters.
func (m *Manifest) Add(id int64, title string, files []string, err error) {
	entry := ManifestEntry{DocumentID: id, Title: title, Status: "success", Files: files}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		entry.Files = nil
		m.FailedExports++
	} else {
		m.SuccessfulExports++
	}
	m.Documents = append(m.Documents, entry)
}

// WriteBulkExportManifest writes the manifest as indented JSON to path.
func WriteBulkExportManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return WriteExport(data, path)
}

func title(r search.Result) string {
	if r.TitleDeu != "" {
		return r.TitleDeu
	}
	if r.TitleEng != "" {
		return r.TitleEng
	}
	return fmt.Sprintf("Document #%d", r.ID)
}
