package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/shared"
	tu "github.com/raminkhorsandi/framework/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleType = `<?xml version="1.0" encoding="UTF-8"?>
<documenttype name="article">
  <field name="Language" multiplicity="*"/>
  <field name="TitleMain" multiplicity="*" mandatory="yes"/>
  <field name="TitleAbstract" multiplicity="*"/>
  <field name="PersonAuthor" multiplicity="*"/>
  <field name="IdentifierUrn"/>
  <field name="Licence"/>
  <field name="Note"/>
  <field name="File"/>
  <field name="Enrichment"/>
  <field name="Publisher"/>
  <field name="PublishedDate"/>
  <field name="CompletedYear"/>
</documenttype>`

const reportType = `<documenttype name="report" workflow="institute">
  <field name="TitleMain"/>
  <mandatory type="one-at-least">
    <field name="PersonEditor" multiplicity="*"/>
    <field name="CreatingCorporation"/>
  </mandatory>
</documenttype>`

func setupLibrary(t *testing.T, opts ...Option) *Library {
	t.Helper()
	doctypes := NewDoctypeRegistry()
	for _, def := range []string{articleType, reportType} {
		_, err := doctypes.Parse([]byte(def))
		require.NoError(t, err)
	}
	opts = append([]Option{WithDoctypes(doctypes)}, opts...)
	lib, err := New(tu.SetupTestAdapter(t), shared.DefaultConfig(), opts...)
	require.NoError(t, err)
	return lib
}

// newArticle returns an unsaved article with a German main title.
func newArticle(t *testing.T, lib *Library, title string) *Document {
	t.Helper()
	doc, err := lib.NewDocument("article", DefaultWorkflow)
	require.NoError(t, err)
	addTitle(t, doc, "TitleMain", title, "deu")
	return doc
}

func addTitle(t *testing.T, doc *Document, field, value, lang string) model.Model {
	t.Helper()
	v, err := doc.Add(field, nil)
	require.NoError(t, err)
	title := v.(model.Model)
	require.NoError(t, title.Set("Value", value))
	require.NoError(t, title.Set("Language", lang))
	return title
}

func newPerson(t *testing.T, lib *Library, first, last string) *model.Entity {
	t.Helper()
	p, err := lib.New(ClassPerson)
	require.NoError(t, err)
	require.NoError(t, p.Set("FirstName", first))
	require.NoError(t, p.Set("LastName", last))
	return p
}

func store(t *testing.T, p model.Persistent) int64 {
	t.Helper()
	id, err := p.Store()
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func TestNew(t *testing.T) {
	t.Run("Loads Doctypes Directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "article.xml"), []byte(articleType), 0o644))

		cfg := shared.DefaultConfig()
		cfg.Doctypes.Path = dir
		lib, err := New(tu.SetupTestAdapter(t), cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"article"}, lib.Doctypes().Names())
	})

	t.Run("Missing Doctypes Directory", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Doctypes.Path = filepath.Join(t.TempDir(), "missing")
		lib, err := New(tu.SetupTestAdapter(t), cfg)
		require.NoError(t, err)
		assert.Empty(t, lib.Doctypes().Names())
	})

	t.Run("Nil Config", func(t *testing.T) {
		lib, err := New(tu.SetupTestAdapter(t), nil, WithDoctypes(NewDoctypeRegistry()))
		require.NoError(t, err)
		assert.Equal(t, []string{"deu", "eng", "fra"}, lib.AvailableLanguages())
		assert.True(t, lib.Registry().Has(ClassDocument))
		assert.True(t, lib.Registry().Has(ClassFileRole))
	})
}

func TestLicences(t *testing.T) {
	lib := setupLibrary(t)

	licences, err := lib.Licences()
	require.NoError(t, err)
	assert.Empty(t, licences)

	for i, name := range []string{"CC BY 4.0", "Alle Rechte vorbehalten"} {
		l, err := lib.New(ClassLicence)
		require.NoError(t, err)
		require.NoError(t, l.Set("NameLong", name))
		require.NoError(t, l.Set("SortOrder", 47-i))
		require.NoError(t, l.Set("Active", true))
		store(t, l)
	}

	licences, err = lib.Licences()
	require.NoError(t, err)
	require.Len(t, licences, 2)
	assert.Equal(t, "Alle Rechte vorbehalten", licences[0].DisplayName())

	active, err := licences[1].Get("Active")
	require.NoError(t, err)
	assert.Equal(t, true, active)
}

func TestRole(t *testing.T) {
	lib := setupLibrary(t)

	role, err := lib.New(ClassRole)
	require.NoError(t, err)
	assert.ErrorIs(t, role.Validate(), model.ErrValidation)

	require.NoError(t, role.Set("Name", "reviewer"))
	require.NoError(t, role.Set("Module", []string{"review", "admin"}))
	id := store(t, role)

	modules, err := lib.AccessModules().ListByRoleID(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "review"}, modules)

	loaded, err := lib.Load(ClassRole, id)
	require.NoError(t, err)
	assert.True(t, loaded.IsPending("Module"))
	got, err := loaded.Get("Module")
	require.NoError(t, err)
	assert.Equal(t, []any{"admin", "review"}, got)
	assert.Equal(t, "reviewer", loaded.DisplayName())

	require.NoError(t, loaded.Delete())
	modules, err = lib.AccessModules().ListByRoleID(id)
	require.NoError(t, err)
	assert.Empty(t, modules)
	assert.Zero(t, tu.CountRows(t, lib.Adapter(), "roles", ""))
}
