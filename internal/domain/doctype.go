package domain

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/raminkhorsandi/framework/internal/model"
)

// DefaultWorkflow is used by document types that do not name a workflow.
const DefaultWorkflow = "repository"

// documentFields lists every field a document type may declare with its default multiplicity.
var documentFields = map[string]int{
	"CompletedDate":           1,
	"CompletedYear":           1,
	"ContributingCorporation": 1,
	"CreatingCorporation":     1,
	"DateAccepted":            1,
	"Edition":                 1,
	"Issue":                   1,
	"Language":                model.Unbounded,
	"NonInstituteAffiliation": 1,
	"PageFirst":               1,
	"PageLast":                1,
	"PageNumber":              1,
	"PublishedDate":           1,
	"PublishedYear":           1,
	"PublisherName":           1,
	"PublisherPlace":          1,
	"Reviewed":                1,
	"ServerDateUnlocking":     1,
	"ServerDateValid":         1,
	"Source":                  1,
	"Volume":                  1,

	"TitleMain":           model.Unbounded,
	"TitleAbstract":       model.Unbounded,
	"TitleParent":         model.Unbounded,
	"TitleSub":            model.Unbounded,
	"TitleAdditional":     model.Unbounded,
	"IdentifierIsbn":      model.Unbounded,
	"IdentifierUrn":       model.Unbounded,
	"IdentifierDoi":       model.Unbounded,
	"IdentifierHandle":    model.Unbounded,
	"IdentifierUrl":       model.Unbounded,
	"IdentifierIssn":      model.Unbounded,
	"IdentifierStdDoi":    model.Unbounded,
	"IdentifierCrisLink":  model.Unbounded,
	"IdentifierSplashUrl": model.Unbounded,
	"IdentifierOpus3":     model.Unbounded,
	"IdentifierOpac":      model.Unbounded,
	"ReferenceIsbn":       model.Unbounded,
	"ReferenceUrn":        model.Unbounded,
	"ReferenceDoi":        model.Unbounded,
	"ReferenceHandle":     model.Unbounded,
	"ReferenceUrl":        model.Unbounded,
	"ReferenceIssn":       model.Unbounded,
	"ReferenceStdDoi":     model.Unbounded,
	"ReferenceCrisLink":   model.Unbounded,
	"ReferenceSplashUrl":  model.Unbounded,
	"Note":                model.Unbounded,
	"Patent":              model.Unbounded,
	"Enrichment":          model.Unbounded,
	"Institute":           model.Unbounded,
	"Licence":             model.Unbounded,
	"PersonAdvisor":       model.Unbounded,
	"PersonAuthor":        model.Unbounded,
	"PersonContributor":   model.Unbounded,
	"PersonEditor":        model.Unbounded,
	"PersonReferee":       model.Unbounded,
	"PersonOther":         model.Unbounded,
	"PersonTranslator":    model.Unbounded,
	"SubjectSwd":          model.Unbounded,
	"SubjectPsyndex":      model.Unbounded,
	"SubjectUncontrolled": model.Unbounded,
	"File":                model.Unbounded,
	"Publisher":           model.Unbounded,
	"Grantor":             model.Unbounded,
}

// FieldSpec declares one document field of a type.
type FieldSpec struct {
	Name         string
	Multiplicity int
	Mandatory    bool
}

// DocumentType declares the fields documents of one kind carry.
type DocumentType struct {
	Name     string
	Workflow string
	Fields   []FieldSpec
	// Groups are field names of which at least one must hold a value.
	Groups [][]string
}

type xmlDoctype struct {
	XMLName   xml.Name       `xml:"documenttype"`
	Name      string         `xml:"name,attr"`
	Workflow  string         `xml:"workflow,attr"`
	Fields    []xmlFieldSpec `xml:"field"`
	Mandatory []struct {
		Type   string         `xml:"type,attr"`
		Fields []xmlFieldSpec `xml:"field"`
	} `xml:"mandatory"`
}

type xmlFieldSpec struct {
	Name         string `xml:"name,attr"`
	Multiplicity string `xml:"multiplicity,attr"`
	Mandatory    string `xml:"mandatory,attr"`
}

// ParseDocumentType reads a document type definition:
//
//	<documenttype name="article" workflow="repository">
//	  <field name="TitleMain" multiplicity="*" mandatory="yes"/>
//	  <mandatory type="one-at-least">
//	    <field name="PersonAuthor" multiplicity="*"/>
//	    <field name="CreatingCorporation"/>
//	  </mandatory>
//	</documenttype>
func ParseDocumentType(data []byte) (*DocumentType, error) {
	var raw xmlDoctype
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDoctype, err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidDoctype)
	}
	t := &DocumentType{Name: raw.Name, Workflow: raw.Workflow}
	if t.Workflow == "" {
		t.Workflow = DefaultWorkflow
	}

	seen := make(map[string]bool)
	add := func(x xmlFieldSpec) error {
		spec, err := x.spec()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDoctype, t.Name, err)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidDoctype, t.Name, spec.Name)
		}
		seen[spec.Name] = true
		t.Fields = append(t.Fields, spec)
		return nil
	}

	for _, x := range raw.Fields {
		if err := add(x); err != nil {
			return nil, err
		}
	}
	for _, group := range raw.Mandatory {
		if group.Type != "one-at-least" {
			return nil, fmt.Errorf("%w: %s has mandatory group of type %q", ErrInvalidDoctype, t.Name, group.Type)
		}
		names := make([]string, 0, len(group.Fields))
		for _, x := range group.Fields {
			x.Mandatory = ""
			if err := add(x); err != nil {
				return nil, err
			}
			names = append(names, x.Name)
		}
		if len(names) > 0 {
			t.Groups = append(t.Groups, names)
		}
	}
	return t, nil
}

func (x xmlFieldSpec) spec() (FieldSpec, error) {
	def, ok := documentFields[x.Name]
	if !ok {
		return FieldSpec{}, fmt.Errorf("%w: %q", model.ErrUnknownField, x.Name)
	}
	spec := FieldSpec{Name: x.Name, Multiplicity: def}
	switch x.Multiplicity {
	case "":
	case "*":
		spec.Multiplicity = model.Unbounded
	default:
		n, err := strconv.Atoi(x.Multiplicity)
		if err != nil || n < 1 {
			return spec, fmt.Errorf("field %s has multiplicity %q", x.Name, x.Multiplicity)
		}
		spec.Multiplicity = n
	}
	switch strings.ToLower(x.Mandatory) {
	case "", "no", "false", "0":
	case "yes", "true", "1":
		spec.Mandatory = true
	default:
		return spec, fmt.Errorf("field %s has mandatory %q", x.Name, x.Mandatory)
	}
	return spec, nil
}

// GenericType declares every known document field with its default multiplicity. It backs stored
// documents whose type is not registered.
func GenericType(name, workflow string) *DocumentType {
	t := &DocumentType{Name: name, Workflow: workflow}
	names := make([]string, 0, len(documentFields))
	for n := range documentFields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		t.Fields = append(t.Fields, FieldSpec{Name: n, Multiplicity: documentFields[n]})
	}
	return t
}

// HasField reports whether the type declares the field.
func (t *DocumentType) HasField(name string) bool {
	return slices.ContainsFunc(t.Fields, func(f FieldSpec) bool { return f.Name == name })
}

// AddFieldsTo adds the declared fields to m with their multiplicity and mandatory flag.
func (t *DocumentType) AddFieldsTo(m *model.Abstract) {
	for _, spec := range t.Fields {
		m.AddField(model.NewField(spec.Name).
			SetMultiplicity(spec.Multiplicity).
			SetMandatory(spec.Mandatory))
	}
}

// ValidateGroups checks that every one-at-least group has a value in m.
func (t *DocumentType) ValidateGroups(m model.Model) error {
	for _, group := range t.Groups {
		satisfied := false
		for _, name := range group {
			f, err := m.Field(name)
			if err != nil {
				return err
			}
			if !f.IsEmpty() {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return &model.ValidationError{
				Class: m.Class(),
				Field: strings.Join(group, "|"),
				Err:   ErrMandatoryGroup,
			}
		}
	}
	return nil
}

// DoctypeRegistry holds document types by name. It is safe for concurrent use.
type DoctypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*DocumentType
}

// NewDoctypeRegistry creates an empty registry.
func NewDoctypeRegistry() *DoctypeRegistry {
	return &DoctypeRegistry{types: make(map[string]*DocumentType)}
}

// Register adds or replaces a type.
func (r *DoctypeRegistry) Register(t *DocumentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
}

// Parse parses a definition and registers it.
func (r *DoctypeRegistry) Parse(data []byte) (*DocumentType, error) {
	t, err := ParseDocumentType(data)
	if err != nil {
		return nil, err
	}
	r.Register(t)
	return t, nil
}

// LoadDir registers every *.xml definition in dir.
func (r *DoctypeRegistry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read doctypes directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".xml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read doctype %s: %w", path, err)
		}
		if _, err := r.Parse(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// Get returns the type registered under name.
func (r *DoctypeRegistry) Get(name string) (*DocumentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDoctype, name)
	}
	return t, nil
}

// Names returns the registered type names in order, limited to workflow unless it is empty.
func (r *DoctypeRegistry) Names(workflow ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name, t := range r.types {
		if len(workflow) > 0 && workflow[0] != "" && t.Workflow != workflow[0] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Workflows returns the distinct workflows of the registered types in order.
func (r *DoctypeRegistry) Workflows() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]bool)
	for _, t := range r.types {
		set[t.Workflow] = true
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
