package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/shared"
	th "github.com/raminkhorsandi/framework/internal/testing"
)

// storedDoc is an in-memory document posing as a stored one.
type storedDoc struct {
	*model.Abstract
	id int64
}

func (d *storedDoc) ID() int64             { return d.id }
func (d *storedDoc) IsNewRecord() bool     { return false }
func (d *storedDoc) Store() (int64, error) { return d.id, nil }
func (d *storedDoc) Delete() error         { return nil }

func newTitle(t *testing.T, value, lang string) model.Model {
	t.Helper()
	m := model.NewAbstract("Title")
	m.AddField(model.NewField("Value"))
	m.AddField(model.NewField("Language"))
	if err := m.Set("Value", value); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("Language", lang); err != nil {
		t.Fatal(err)
	}
	return m
}

func newDoc(t *testing.T) *storedDoc {
	t.Helper()
	m := model.NewAbstract("Document")
	m.AddField(model.NewField("Type"))
	m.AddField(model.NewField("CompletedYear"))
	m.AddField(model.NewField("TitleMain").SetMultiplicity(model.Unbounded))
	if err := m.Set("Type", "article"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("CompletedYear", "1951"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add("TitleMain", newTitle(t, "Zettel", "deu")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Add("TitleMain", newTitle(t, "Notes", "eng")); err != nil {
		t.Fatal(err)
	}
	return &storedDoc{Abstract: m, id: 7}
}

var results = []search.Result{
	{
		ID:          1,
		Authors:     []string{"Wittgenstein, Ludwig", "Anscombe, Elizabeth"},
		TitleDeu:    "Zettel",
		Year:        "1967",
		AbstractDeu: "Bemerkungen",
	},
	{
		ID:       2,
		TitleEng: "Begriffsschrift",
		Year:     "1879",
	},
	{ID: 3},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"xml", FormatXML},
		{"csv", FormatCSV},
		{"md", FormatMarkdown},
		{"text", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
	if got := FormatMarkdown.Extension(); got != "md" {
		t.Errorf("expected md extension, got %s", got)
	}
	if got := FormatYAML.Extension(); got != "yaml" {
		t.Errorf("expected yaml extension, got %s", got)
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(results)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Title,Authors,Year\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,Zettel,\"Wittgenstein, Ludwig; Anscombe, Elizabeth\",1967") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, "2,Begriffsschrift,,1879") {
			t.Errorf("CSV should fall back to the English title, got: %s", output)
		}
		if !strings.Contains(output, "3,Document #3,,") {
			t.Errorf("CSV should name untitled documents, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown("Hits", results)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Hits",
			"**Documents**: 3",
			"1. Zettel - Wittgenstein, Ludwig; Anscombe, Elizabeth (1967) [#1]",
			"> Bemerkungen",
			"2. Begriffsschrift (1879) [#2]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(results[:2])
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Documents: 2") {
			t.Errorf("text missing count, got: %s", output)
		}
		if !strings.Contains(output, "1. Zettel - Wittgenstein, Ludwig; Anscombe, Elizabeth\n") {
			t.Errorf("text missing first line, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(newDoc(t))
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got["Type"] != "article" {
			t.Errorf("expected Type article, got %v", got["Type"])
		}
		titles, ok := got["TitleMain"].([]any)
		if !ok || len(titles) != 2 {
			t.Fatalf("expected two titles, got %#v", got["TitleMain"])
		}
		if !strings.Contains(string(data), "\n  ") {
			t.Errorf("expected indented JSON, got: %s", data)
		}
	})

	t.Run("ExportToYAML", func(t *testing.T) {
		data, err := ExportToYAML(newDoc(t))
		if err != nil {
			t.Fatalf("ExportToYAML failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Type: article", "TitleMain:", "Value: Zettel", "Language: eng"} {
			if !strings.Contains(output, want) {
				t.Errorf("YAML missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToXML", func(t *testing.T) {
		data, err := ExportToXML(newDoc(t))
		if err != nil {
			t.Fatalf("ExportToXML failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"<Opus>", "<Document", `Type="article"`, `CompletedYear="1951"`, "<TitleMain"} {
			if !strings.Contains(output, want) {
				t.Errorf("XML missing %q, got: %s", want, output)
			}
		}
	})
}

func TestExport(t *testing.T) {
	doc := newDoc(t)

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, `"Type": "article"`},
		{FormatYAML, "Type: article"},
		{FormatXML, "<Opus>"},
		{FormatCSV, "7,Zettel,,1951"},
		{FormatMarkdown, "# Zettel"},
		{FormatText, "7. Zettel"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			data, err := Export(doc, tt.format)
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("expected %q in output, got: %s", tt.want, data)
			}
		})
	}

	if _, err := Export(doc, Format("pdf")); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestWriters(t *testing.T) {
	wd := th.MustGetwd(t)
	th.MustChdir(t, t.TempDir())
	t.Cleanup(func() { th.MustChdir(t, wd) })

	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join("exports", "nested", "7.csv")
		if err := WriteExport([]byte("ID\n7\n"), path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if got := th.MustReadFile(t, path); got != "ID\n7\n" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("WriteExport Relative", func(t *testing.T) {
		if err := WriteExport([]byte("x"), "plain.txt"); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, "plain.txt")
	})

	t.Run("WriteBulkExportManifest", func(t *testing.T) {
		m := &Manifest{Format: FormatCSV, OutputDirectory: "exports", TotalDocuments: 2}
		m.Add(1, "Zettel", []string{"exports/1.csv"}, nil)
		m.Add(2, "", []string{"exports/2.csv"}, errors.New("no title"))

		if m.SuccessfulExports != 1 || m.FailedExports != 1 {
			t.Fatalf("unexpected counters %d/%d", m.SuccessfulExports, m.FailedExports)
		}

		path := filepath.Join("exports", "manifest.json")
		if err := WriteBulkExportManifest(m, path); err != nil {
			t.Fatalf("WriteBulkExportManifest failed: %v", err)
		}

		var got Manifest
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &got); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}
		if got.Format != FormatCSV || got.TotalDocuments != 2 || len(got.Documents) != 2 {
			t.Errorf("unexpected manifest %+v", got)
		}
		if got.Documents[0].Status != "success" || got.Documents[0].Files[0] != "exports/1.csv" {
			t.Errorf("unexpected first entry %+v", got.Documents[0])
		}
		if got.Documents[1].Status != "failed" || got.Documents[1].Error != "no title" || got.Documents[1].Files != nil {
			t.Errorf("unexpected second entry %+v", got.Documents[1])
		}
	})
}
