package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/shared"
)

// Server states of a document.
const (
	StateUnpublished = "unpublished"
	StatePublished   = "published"
	StateDeleted     = "deleted"
)

var serverStates = []any{StateUnpublished, StatePublished, StateDeleted}

var dateFields = []string{"DateAccepted", "CompletedDate", "PublishedDate", "ServerDateUnlocking", "ServerDateValid"}

var identifierTypes = []struct{ field, kind string }{
	{"IdentifierIsbn", "isbn"},
	{"IdentifierUrn", "urn"},
	{"IdentifierDoi", "doi"},
	{"IdentifierHandle", "handle"},
	{"IdentifierUrl", "url"},
	{"IdentifierIssn", "issn"},
	{"IdentifierStdDoi", "std-doi"},
	{"IdentifierCrisLink", "cris-link"},
	{"IdentifierSplashUrl", "splash-url"},
	{"IdentifierOpus3", "opus3-id"},
	{"IdentifierOpac", "opac-id"},
}

var referenceTypes = []struct{ field, kind string }{
	{"ReferenceIsbn", "isbn"},
	{"ReferenceUrn", "urn"},
	{"ReferenceDoi", "doi"},
	{"ReferenceHandle", "handle"},
	{"ReferenceUrl", "url"},
	{"ReferenceIssn", "issn"},
	{"ReferenceStdDoi", "std-doi"},
	{"ReferenceCrisLink", "cris-link"},
	{"ReferenceSplashUrl", "splash-url"},
}

var personRoles = []struct{ field, role string }{
	{"PersonAdvisor", "advisor"},
	{"PersonAuthor", "author"},
	{"PersonContributor", "contributor"},
	{"PersonEditor", "editor"},
	{"PersonReferee", "referee"},
	{"PersonOther", "other"},
	{"PersonTranslator", "translator"},
}

// Document is a publication with its metadata. The fields it carries depend on its [DocumentType].
type Document struct {
	*model.Entity
	lib *Library
}

// Type returns the document type name.
func (d *Document) Type() string {
	v, _ := d.Get("Type")
	return stringValue(v)
}

// Workflow returns the workflow the document type belongs to.
func (d *Document) Workflow() string {
	v, _ := d.Get("Workflow")
	return stringValue(v)
}

// ServerState returns the publication state.
func (d *Document) ServerState() string {
	v, _ := d.Get("ServerState")
	return stringValue(v)
}

// Doctype returns the document type the fields were built from.
func (d *Document) Doctype() (*DocumentType, error) {
	return d.lib.doctypeOf(d.Entity)
}

// Validate validates every field and the one-at-least groups of the document type.
func (d *Document) Validate() error {
	if err := d.Entity.Validate(); err != nil {
		return err
	}
	t, err := d.Doctype()
	if err != nil {
		return err
	}
	return t.ValidateGroups(d)
}

// IsValid reports whether [Document.Validate] passes.
func (d *Document) IsValid() bool {
	return d.Validate() == nil
}

// Delete removes the document from the search index and marks it deleted. The record is kept.
func (d *Document) Delete() error {
	if d.IsNewRecord() {
		return nil
	}
	if err := d.lib.indexer.RemoveDocumentFromEntryIndex(d.ID()); err != nil {
		d.Logger().Warn("failed to remove document from index", "id", d.ID(), "err", err)
	}
	if err := d.Set("ServerState", StateDeleted); err != nil {
		return err
	}
	_, err := d.Store()
	return err
}

// DeletePermanent removes the document from the search index and deletes it with its dependent models.
func (d *Document) DeletePermanent() error {
	if d.IsNewRecord() || d.IsDeleted() {
		return nil
	}
	if err := d.lib.indexer.RemoveDocumentFromEntryIndex(d.ID()); err != nil {
		d.Logger().Warn("failed to remove document from index", "id", d.ID(), "err", err)
	}
	return d.Entity.Delete()
}

// NewDocument creates an unsaved document of a registered type.
func (l *Library) NewDocument(doctype, workflow string) (*Document, error) {
	e, err := l.registry.New(ClassDocument, model.WithAttr("Type", doctype), model.WithAttr("Workflow", workflow))
	if err != nil {
		return nil, err
	}
	return l.wrapDocument(e), nil
}

// NewDocumentOfType creates an unsaved document of t, registered or not.
func (l *Library) NewDocumentOfType(t *DocumentType) (*Document, error) {
	e, err := l.registry.New(ClassDocument, model.WithAttr("Type", t))
	if err != nil {
		return nil, err
	}
	return l.wrapDocument(e), nil
}

// Document loads a stored document.
func (l *Library) Document(id int64) (*Document, error) {
	e, err := l.registry.Load(ClassDocument, id)
	if err != nil {
		return nil, err
	}
	return l.wrapDocument(e), nil
}

// DocumentFromXML creates an unsaved document from its XML form. The Type and Workflow attributes
// select the document type.
func (l *Library) DocumentFromXML(data []byte) (*Document, error) {
	e, err := l.registry.FromXML(data, "Type", "Workflow")
	if err != nil {
		return nil, err
	}
	if e.Class() != ClassDocument {
		return nil, fmt.Errorf("%w: expected %s, got %s", model.ErrInvalidArgument, ClassDocument, e.Class())
	}
	return l.wrapDocument(e), nil
}

func (l *Library) wrapDocument(e *model.Entity) *Document {
	return &Document{Entity: e, lib: l}
}

// doctypeOf resolves the type of a document entity. Stored documents of unregistered types get
// the generic type.
func (l *Library) doctypeOf(e *model.Entity) (*DocumentType, error) {
	if !e.IsNewRecord() {
		name := stringValue(e.Column("type"))
		if t, err := l.doctypes.Get(name); err == nil {
			return t, nil
		}
		return GenericType(name, stringValue(e.Column("workflow"))), nil
	}

	v, _ := e.Attr("Type")
	switch t := v.(type) {
	case *DocumentType:
		return t, nil
	case string:
		w, _ := e.Attr("Workflow")
		workflow := stringValue(w)
		if t == "" || workflow == "" {
			return nil, ErrMissingDoctype
		}
		dt, err := l.doctypes.Get(t)
		if err != nil {
			return nil, err
		}
		if dt.Workflow == workflow {
			return dt, nil
		}
		c := *dt
		c.Workflow = workflow
		return &c, nil
	}
	return nil, ErrMissingDoctype
}

func (l *Library) documentSchema() *model.Schema {
	return &model.Schema{
		Class:     ClassDocument,
		Table:     "documents",
		Init:      l.initDocument,
		Externals: l.documentExternals(),
		ReadOnly:  []string{"Type", "Workflow"},
		PreStore:  preStoreDocument,
	}
}

func (l *Library) initDocument(e *model.Entity) error {
	t, err := l.doctypeOf(e)
	if err != nil {
		return err
	}
	t.AddFieldsTo(e.Abstract)

	e.AddField(model.NewField("Type").
		SetSelection(true).
		SetDefault(toAny(l.doctypes.Names(t.Workflow))...))
	e.AddField(model.NewField("Workflow").
		SetSelection(true).
		SetDefault(toAny(l.doctypes.Workflows())...))
	e.AddField(model.NewField("ServerState").
		SetSelection(true).
		SetDefault(serverStates...).
		AddValidator(model.OneOf(serverStates...)))
	e.AddField(model.NewField("ServerDateModified").AddValidator(model.Date()))
	e.AddField(model.NewField("ServerDatePublished").AddValidator(model.Date()))
	e.AddField(model.NewField("IdentifierUuid"))
	e.AddField(model.NewField("Collection").SetMultiplicity(model.Unbounded))

	if e.IsNewRecord() {
		if err := e.Set("Type", t.Name); err != nil {
			return err
		}
		if err := e.Set("Workflow", t.Workflow); err != nil {
			return err
		}
	}

	for _, name := range dateFields {
		if f, err := e.Abstract.Field(name); err == nil {
			f.AddValidator(model.Date())
		}
	}
	return l.selectionDefaults(e)
}

func (l *Library) selectionDefaults(e *model.Entity) error {
	if f, err := e.Abstract.Field("Language"); err == nil {
		langs := toAny(l.AvailableLanguages())
		f.SetSelection(true).SetDefault(langs...)
		if len(langs) > 0 {
			f.AddValidator(model.OneOf(langs...))
		}
	}
	if f, err := e.Abstract.Field("Licence"); err == nil {
		licences, err := l.Licences()
		if err != nil {
			return err
		}
		f.SetSelection(true).SetDefault(toAny(licences)...)
	}
	for _, name := range []string{"Publisher", "Grantor"} {
		f, err := e.Abstract.Field(name)
		if err != nil {
			continue
		}
		units := l.Publishers
		if name == "Grantor" {
			units = l.Grantors
		}
		list, err := units()
		if err != nil {
			return err
		}
		f.SetSelection(true).SetDefault(toAny(list)...)
	}
	return nil
}

func (l *Library) documentExternals() []model.External {
	var exts []model.External
	titles := []struct{ field, class, kind string }{
		{"TitleMain", ClassTitle, "main"},
		{"TitleAbstract", ClassAbstract, "abstract"},
		{"TitleParent", ClassTitle, "parent"},
		{"TitleSub", ClassTitle, "sub"},
		{"TitleAdditional", ClassTitle, "additional"},
	}
	for _, t := range titles {
		exts = append(exts, model.External{
			Name:    t.field,
			Model:   t.class,
			Options: map[string]any{"type": t.kind},
			Fetch:   model.Lazy,
		})
	}

	uuid := model.External{
		Name:    "IdentifierUuid",
		Model:   ClassIdentifier,
		Options: map[string]any{"type": "uuid"},
		Fetch:   model.Lazy,
	}
	uuid.Save = generatedIdentifier(uuid, func(*model.Entity) (string, error) {
		return shared.GenerateID(), nil
	})
	exts = append(exts, uuid)

	for _, it := range identifierTypes {
		ext := model.External{
			Name:    it.field,
			Model:   ClassIdentifier,
			Options: map[string]any{"type": it.kind},
		}
		if it.kind == "isbn" {
			ext.Fetch = model.Lazy
		}
		if it.kind == "urn" {
			ext.Save = generatedIdentifier(ext, l.generateURN)
		}
		exts = append(exts, ext)
	}
	for _, rt := range referenceTypes {
		ext := model.External{
			Name:    rt.field,
			Model:   ClassReference,
			Options: map[string]any{"type": rt.kind},
		}
		if rt.kind == "isbn" {
			ext.Fetch = model.Lazy
		}
		exts = append(exts, ext)
	}

	exts = append(exts,
		model.External{Name: "Note", Model: ClassNote, Fetch: model.Lazy},
		model.External{Name: "Patent", Model: ClassPatent, Fetch: model.Lazy},
		model.External{Name: "Enrichment", Model: ClassEnrichment, Fetch: model.Lazy},
		model.External{Name: "Institute", Model: ClassInstitute, Through: ClassDocumentInstitute, Fetch: model.Lazy},
		model.External{Name: "Licence", Model: ClassLicence, Through: ClassDocumentLicence, Fetch: model.Lazy},
	)

	for _, p := range personRoles {
		ext := model.External{
			Name:    p.field,
			Model:   ClassPerson,
			Through: ClassDocumentPerson,
			Options: map[string]any{"role": p.role},
			Fetch:   model.Lazy,
		}
		if p.role == "author" {
			ext.Sort = []string{"sort_order ASC"}
		}
		exts = append(exts, ext)
	}

	exts = append(exts,
		model.External{
			Name:    "SubjectSwd",
			Model:   ClassSubject,
			Options: map[string]any{"type": "swd", "language": "deu"},
			Fetch:   model.Lazy,
		},
		model.External{
			Name:    "SubjectPsyndex",
			Model:   ClassSubject,
			Options: map[string]any{"type": "psyndex"},
			Fetch:   model.Lazy,
		},
		model.External{
			Name:    "SubjectUncontrolled",
			Model:   ClassSubject,
			Options: map[string]any{"type": "uncontrolled"},
			Fetch:   model.Lazy,
		},
		model.External{Name: "File", Model: ClassFile, Fetch: model.Lazy},
		model.External{
			Name:    "Collection",
			Model:   ClassCollection,
			Through: ClassDocumentCollection,
			Options: map[string]any{"role": nil},
			Fetch:   model.Lazy,
		},
		model.External{
			Name:    "Publisher",
			Model:   ClassCollection,
			Through: ClassDocumentCollection,
			Options: map[string]any{"role": "publisher"},
			Fetch:   model.Lazy,
		},
		model.External{
			Name:    "Grantor",
			Model:   ClassCollection,
			Through: ClassDocumentCollection,
			Options: map[string]any{"role": "grantor"},
			Fetch:   model.Lazy,
		},
	)
	return exts
}

func preStoreDocument(e *model.Entity) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if e.IsNewRecord() {
		published, err := e.Field("ServerDatePublished")
		if err != nil {
			return err
		}
		if published.IsEmpty() {
			if err := published.SetValue(now); err != nil {
				return err
			}
		}
	}
	if err := e.Set("ServerDateModified", now); err != nil {
		return err
	}
	state, err := e.Field("ServerState")
	if err != nil {
		return err
	}
	if state.IsEmpty() {
		return state.SetValue(StateUnpublished)
	}
	return nil
}

// generatedIdentifier stores an identifier field, filling in a generated value when no identifier
// holds one. Generators returning "" leave the field alone.
func generatedIdentifier(ext model.External, generate func(*model.Entity) (string, error)) func(*model.Entity, *model.Field) error {
	return func(e *model.Entity, f *model.Field) error {
		if e.IsPending(f.Name()) {
			return nil
		}
		if !hasIdentifier(f) {
			value, err := generate(e)
			if err != nil {
				return err
			}
			if value != "" {
				if err := setIdentifier(f, value); err != nil {
					return err
				}
			}
		}
		if !f.IsModified() {
			return nil
		}
		return e.StoreExternal(ext, f)
	}
}

func hasIdentifier(f *model.Field) bool {
	for _, v := range f.Values() {
		m, ok := v.(model.Model)
		if !ok {
			continue
		}
		if value, err := m.Get("Value"); err == nil && stringValue(value) != "" {
			return true
		}
	}
	return false
}

func setIdentifier(f *model.Field, value string) error {
	var target model.Model
	if !f.HasMultipleValues() && f.Len() > 0 {
		target, _ = f.Value().(model.Model)
	}
	if target == nil {
		v, err := f.AddValue(nil)
		if err != nil {
			return err
		}
		m, ok := v.(model.Model)
		if !ok {
			return fmt.Errorf("%w: %s did not create a model", model.ErrModel, f.Name())
		}
		target = m
	}
	return target.Set("Value", value)
}

func (l *Library) generateURN(e *model.Entity) (string, error) {
	urn, err := NewURN(l.config.URN)
	if errors.Is(err, shared.ErrInvalidConfig) {
		e.Logger().Debug("urn namespace not configured, skipping urn", "id", e.ID())
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return urn.Generate(e.ID())
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
