package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/security"
)

// Model classes registered by a [Library].
const (
	ClassDocument           = "Document"
	ClassTitle              = "Title"
	ClassAbstract           = "Abstract"
	ClassIdentifier         = "Identifier"
	ClassReference          = "Reference"
	ClassNote               = "Note"
	ClassPatent             = "Patent"
	ClassEnrichment         = "Enrichment"
	ClassSubject            = "Subject"
	ClassFile               = "File"
	ClassPerson             = "Person"
	ClassLicence            = "Licence"
	ClassInstitute          = "Institute"
	ClassRole               = "Role"
	ClassCollection         = "Collection"
	ClassCollectionRole     = "CollectionRole"
	ClassEnrichmentKey      = "EnrichmentKey"
	ClassDocumentPerson     = "DocumentPerson"
	ClassDocumentLicence    = "DocumentLicence"
	ClassDocumentInstitute  = "DocumentInstitute"
	ClassDocumentCollection = "DocumentCollection"
	ClassFileRole           = "FileRole"
)

// PrivilegeReadFile is the privilege granted to roles linked to a file.
const PrivilegeReadFile = "readFile"

func addFields(e *model.Entity, names ...string) {
	for _, name := range names {
		e.AddField(model.NewField(name))
	}
}

func initFields(names ...string) model.Hook {
	return func(e *model.Entity) error {
		addFields(e, names...)
		return nil
	}
}

func boolCodecs(names ...string) map[string]model.Codec {
	codecs := make(map[string]model.Codec, len(names))
	for _, name := range names {
		codecs[name] = model.BoolCodec()
	}
	return codecs
}

func titleSchema(class string) *model.Schema {
	return &model.Schema{
		Class:  class,
		Table:  "document_title_abstracts",
		Parent: "document_id",
		Init: func(e *model.Entity) error {
			value := model.NewField("Value").SetMandatory(true)
			if class == ClassAbstract {
				value.SetTextarea(true)
			}
			e.AddField(value)
			addFields(e, "Language", "SortOrder")
			return nil
		},
	}
}

func (l *Library) dependentSchemas() []*model.Schema {
	return []*model.Schema{
		titleSchema(ClassTitle),
		titleSchema(ClassAbstract),
		{
			Class:  ClassIdentifier,
			Table:  "document_identifiers",
			Parent: "document_id",
			Init:   initFields("Value"),
		},
		{
			Class:  ClassReference,
			Table:  "document_references",
			Parent: "document_id",
			Init:   initFields("Value", "Label"),
		},
		{
			Class:  ClassNote,
			Table:  "document_notes",
			Parent: "document_id",
			Init: func(e *model.Entity) error {
				e.AddField(model.NewField("Message").SetMandatory(true).SetTextarea(true))
				e.AddField(model.NewField("Creator"))
				e.AddField(model.NewField("Scope").
					SetSelection(true).
					SetDefault("public", "private", "reference").
					AddValidator(model.OneOf("public", "private", "reference")))
				return nil
			},
		},
		{
			Class:  ClassPatent,
			Table:  "document_patents",
			Parent: "document_id",
			Init: func(e *model.Entity) error {
				addFields(e, "Countries", "Number", "Application")
				e.AddField(model.NewField("DateGranted").AddValidator(model.Date()))
				e.AddField(model.NewField("YearApplied").AddValidator(model.Integer()))
				return nil
			},
		},
		{
			Class:  ClassEnrichment,
			Table:  "document_enrichments",
			Parent: "document_id",
			Init: func(e *model.Entity) error {
				e.AddField(model.NewField("KeyName").SetMandatory(true))
				e.AddField(model.NewField("Value").SetMandatory(true))
				return nil
			},
		},
		{
			Class:  ClassSubject,
			Table:  "document_subjects",
			Parent: "document_id",
			Init:   initFields("Language", "Value", "ExternalKey"),
		},
		{
			Class:  ClassFile,
			Table:  "document_files",
			Parent: "document_id",
			Init: func(e *model.Entity) error {
				e.AddField(model.NewField("PathName").SetMandatory(true))
				addFields(e, "Label", "MimeType", "Language", "FileSize", "Comment", "VisibleInFrontdoor")
				e.AddField(model.NewField("Role").SetMultiplicity(model.Unbounded))
				return nil
			},
			Codecs: boolCodecs("VisibleInFrontdoor"),
			Externals: []model.External{{
				Name:    "Role",
				Model:   ClassRole,
				Through: ClassFileRole,
				Options: map[string]any{"privilege": PrivilegeReadFile},
				Fetch:   model.Lazy,
			}},
		},
	}
}

func (l *Library) independentSchemas() []*model.Schema {
	return []*model.Schema{
		{
			Class: ClassPerson,
			Table: "persons",
			Init: func(e *model.Entity) error {
				addFields(e, "AcademicTitle", "PlaceOfBirth", "FirstName")
				e.AddField(model.NewField("LastName").SetMandatory(true))
				e.AddField(model.NewField("DateOfBirth").AddValidator(model.Date()))
				e.AddField(model.NewField("Email"))
				return nil
			},
			DisplayName: personName,
		},
		{
			Class: ClassLicence,
			Table: "document_licences",
			Init: func(e *model.Entity) error {
				addFields(e, "Active", "CommentInternal", "DescMarkup", "DescText", "Language", "LinkLicence",
					"LinkLogo", "LinkSign", "MimeType")
				e.AddField(model.NewField("NameLong").SetMandatory(true))
				addFields(e, "PodAllowed", "SortOrder")
				return nil
			},
			Codecs:      boolCodecs("Active", "PodAllowed"),
			PostStore:   l.flushLicences,
			DisplayName: displayField("NameLong"),
		},
		{
			Class:       ClassInstitute,
			Table:       "institutes_contents",
			Init:        initFields("Name", "City", "IsGrantor", "IsPublisher"),
			Codecs:      boolCodecs("IsGrantor", "IsPublisher"),
			DisplayName: displayField("Name"),
		},
		l.roleSchema(),
	}
}

func (l *Library) linkSchemas() []*model.Schema {
	return []*model.Schema{
		{
			Class:  ClassDocumentPerson,
			Table:  "link_persons_documents",
			Parent: "document_id",
			Link:   &model.Link{Model: ClassPerson, Key: "person_id"},
			Init: func(e *model.Entity) error {
				addFields(e, "Role", "SortOrder", "AllowEmailContact")
				return nil
			},
			Codecs: boolCodecs("AllowEmailContact"),
			DisplayName: func(e *model.Entity) string {
				if m := e.LinkedModel(); m != nil {
					return m.DisplayName()
				}
				return e.ResourceID()
			},
		},
		{
			Class:  ClassDocumentLicence,
			Table:  "link_documents_licences",
			Parent: "document_id",
			Link:   &model.Link{Model: ClassLicence, Key: "licence_id", Display: "NameLong"},
		},
		{
			Class:  ClassDocumentInstitute,
			Table:  "link_institutes_documents",
			Parent: "document_id",
			Link:   &model.Link{Model: ClassInstitute, Key: "institute_id", Display: "Name"},
			Init:   initFields("Role"),
		},
		{
			Class:  ClassDocumentCollection,
			Table:  "link_documents_collections",
			Parent: "document_id",
			Link:   &model.Link{Model: ClassCollection, Key: "collection_id", Display: "Name"},
			PreStore: func(e *model.Entity) error {
				c, ok := e.LinkedModel().(interface{ Column(string) any })
				if !ok {
					return fmt.Errorf("%w: collection link without collection", model.ErrInvalidArgument)
				}
				e.Row().Set("role_id", c.Column("role_id"))
				return nil
			},
		},
		{
			Class:  ClassFileRole,
			Table:  "privileges",
			Parent: "file_id",
			Link:   &model.Link{Model: ClassRole, Key: "role_id", Display: "Privilege"},
			Init:   initFields("Privilege"),
			// an identical grant that already exists is reused instead of duplicated
			PreStore: func(e *model.Entity) error {
				if !e.IsNewRecord() {
					return nil
				}
				privilege, _ := e.Get("Privilege")
				table := e.Table()
				row, err := table.FetchRow(table.Select().
					Where("file_id = ? AND role_id = ? AND privilege = ?",
						e.Column("file_id"), e.Column("role_id"), privilege).
					Limit(1))
				if errors.Is(err, gateway.ErrRowNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				e.AdoptRow(row)
				return nil
			},
		},
	}
}

func (l *Library) roleSchema() *model.Schema {
	return &model.Schema{
		Class: ClassRole,
		Table: "roles",
		Init: func(e *model.Entity) error {
			e.AddField(model.NewField("Name").SetMandatory(true).AddValidator(model.NotEmpty()))
			e.AddField(model.NewField("Module").SetMultiplicity(model.Unbounded))
			return nil
		},
		Externals: []model.External{{
			Name:  "Module",
			Fetch: model.Lazy,
			Load: func(e *model.Entity) ([]any, error) {
				if e.IsNewRecord() {
					return nil, nil
				}
				names, err := security.NewAccessModules(e.Adapter()).ListByRoleID(e.ID())
				if err != nil {
					return nil, err
				}
				out := make([]any, len(names))
				for i, n := range names {
					out[i] = n
				}
				return out, nil
			},
			Save: func(e *model.Entity, f *model.Field) error {
				if e.IsPending(f.Name()) || !f.IsModified() {
					return nil
				}
				names := make([]string, 0, f.Len())
				for _, v := range f.Values() {
					names = append(names, fmt.Sprint(v))
				}
				return security.NewAccessModules(e.Adapter()).Replace(e.ID(), names)
			},
		}},
		PreDelete: func(e *model.Entity) error {
			if err := security.NewAccessModules(e.Adapter()).Replace(e.ID(), nil); err != nil {
				return err
			}
			_, err := e.Adapter().Exec("DELETE FROM privileges WHERE role_id = ?", e.ID())
			return err
		},
		DisplayName: displayField("Name"),
	}
}

func displayField(name string) func(*model.Entity) string {
	return func(e *model.Entity) string {
		v, err := e.Get(name)
		if err != nil || v == nil || v == "" {
			return e.ResourceID()
		}
		return fmt.Sprint(v)
	}
}

func personName(e *model.Entity) string {
	first, _ := e.Get("FirstName")
	last, _ := e.Get("LastName")
	parts := make([]string, 0, 2)
	for _, v := range []any{last, first} {
		if v != nil && v != "" {
			parts = append(parts, fmt.Sprint(v))
		}
	}
	if len(parts) == 0 {
		return e.ResourceID()
	}
	return strings.Join(parts, ", ")
}
