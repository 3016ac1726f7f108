package domain

import (
	"testing"

	"github.com/raminkhorsandi/framework/internal/model"
	tu "github.com/raminkhorsandi/framework/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollectionRole(t *testing.T, lib *Library, name string) int64 {
	t.Helper()
	role, err := lib.New(ClassCollectionRole)
	require.NoError(t, err)
	require.NoError(t, role.Set("Name", name))
	return store(t, role)
}

func newCollection(t *testing.T, lib *Library, role, parent, left int64, name string) *Collection {
	t.Helper()
	c, err := lib.NewCollection(role, parent, left)
	require.NoError(t, err)
	require.NoError(t, c.Set("Name", name))
	store(t, c)
	return c
}

func collectionNames(t *testing.T, collections []*Collection) []string {
	t.Helper()
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name()
	}
	return names
}

func TestCollectionRole(t *testing.T) {
	lib := setupLibrary(t)

	role, err := lib.New(ClassCollectionRole)
	require.NoError(t, err)
	assert.ErrorIs(t, role.Validate(), model.ErrValidation)

	id := newCollectionRole(t, lib, "ddc")
	assert.Equal(t, int64(2), id)

	loaded, err := lib.Load(ClassCollectionRole, id)
	require.NoError(t, err)
	visible, err := loaded.Get("Visible")
	require.NoError(t, err)
	assert.Equal(t, true, visible)
	assert.Equal(t, "ddc", loaded.DisplayName())
}

func TestCollectionTree(t *testing.T) {
	t.Run("Requires Role And Place", func(t *testing.T) {
		lib := setupLibrary(t)
		_, err := lib.Registry().New(ClassCollection)
		assert.ErrorIs(t, err, model.ErrInvalidArgument)

		_, err = lib.Registry().New(ClassCollection, model.WithAttr("ParentID", int64(0)))
		assert.ErrorIs(t, err, model.ErrInvalidArgument)
	})

	t.Run("Positions", func(t *testing.T) {
		lib := setupLibrary(t)
		role := newCollectionRole(t, lib, "ddc")
		root := newCollection(t, lib, role, 0, 0, "Root")
		a := newCollection(t, lib, role, root.ID(), 0, "A")
		newCollection(t, lib, role, root.ID(), a.ID(), "B")
		newCollection(t, lib, role, root.ID(), 0, "C")

		loaded, err := lib.Collection(root.ID())
		require.NoError(t, err)
		children, err := loaded.Children()
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A", "B"}, collectionNames(t, children))

		positions := make([]any, len(children))
		for i, c := range children {
			positions[i], err = c.Get("Position")
			require.NoError(t, err)
		}
		assert.EqualValues(t, []any{int64(1), int64(2), int64(3)}, positions)

		roots, err := lib.RootCollections(role)
		require.NoError(t, err)
		assert.Equal(t, []string{"Root"}, collectionNames(t, roots))
		assert.Equal(t, role, roots[0].RoleID())
		assert.Equal(t, root.ID(), children[0].ParentID())
	})

	t.Run("Left Sibling Must Share Parent", func(t *testing.T) {
		lib := setupLibrary(t)
		role := newCollectionRole(t, lib, "ddc")
		root := newCollection(t, lib, role, 0, 0, "Root")
		other := newCollection(t, lib, role, 0, root.ID(), "Other")

		c, err := lib.NewCollection(role, root.ID(), other.ID())
		require.NoError(t, err)
		require.NoError(t, c.Set("Name", "Lost"))
		_, err = c.Store()
		assert.ErrorIs(t, err, ErrCollectionPlace)
	})

	t.Run("Parents", func(t *testing.T) {
		lib := setupLibrary(t)
		role := newCollectionRole(t, lib, "ddc")
		root := newCollection(t, lib, role, 0, 0, "Root")
		b := newCollection(t, lib, role, root.ID(), 0, "B")
		leaf := newCollection(t, lib, role, b.ID(), 0, "Leaf")

		loaded, err := lib.Collection(leaf.ID())
		require.NoError(t, err)
		assert.True(t, loaded.IsPending("ParentCollection"))
		parents, err := loaded.Parents()
		require.NoError(t, err)
		assert.Equal(t, []string{"Root", "B"}, collectionNames(t, parents))

		top, err := lib.Collection(root.ID())
		require.NoError(t, err)
		parents, err = top.Parents()
		require.NoError(t, err)
		assert.Empty(t, parents)
	})

	t.Run("To Array", func(t *testing.T) {
		lib := setupLibrary(t)
		role := newCollectionRole(t, lib, "ddc")
		root := newCollection(t, lib, role, 0, 0, "Root")
		b := newCollection(t, lib, role, root.ID(), 0, "B")
		newCollection(t, lib, role, b.ID(), 0, "Leaf")

		loaded, err := lib.Collection(root.ID())
		require.NoError(t, err)
		arr, err := loaded.ToArray()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"Id":   root.ID(),
			"Name": "Root",
			"SubCollection": []any{map[string]any{
				"Id":   b.ID(),
				"Name": "B",
				"SubCollection": []any{map[string]any{
					"Id":            b.ID() + 1,
					"Name":          "Leaf",
					"SubCollection": []any{},
				}},
			}},
		}, arr)
	})

	t.Run("Delete Is Soft And Recursive", func(t *testing.T) {
		lib := setupLibrary(t)
		role := newCollectionRole(t, lib, "ddc")
		root := newCollection(t, lib, role, 0, 0, "Root")
		b := newCollection(t, lib, role, root.ID(), 0, "B")
		leaf := newCollection(t, lib, role, b.ID(), 0, "Leaf")

		loaded, err := lib.Collection(root.ID())
		require.NoError(t, err)
		require.NoError(t, loaded.Delete())

		for _, id := range []int64{root.ID(), b.ID(), leaf.ID()} {
			_, err := lib.Collection(id)
			assert.True(t, model.IsNotFound(err), "collection %d", id)
		}
		assert.Equal(t, 3, tu.CountRows(t, lib.Adapter(), "collections", "deleted_at IS NOT NULL"))

		roots, err := lib.RootCollections(role)
		require.NoError(t, err)
		assert.Empty(t, roots)
	})
}

func TestCollectionEntries(t *testing.T) {
	lib := setupLibrary(t)
	role := newCollectionRole(t, lib, "ddc")
	c := newCollection(t, lib, role, 0, 0, "Philosophie")

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	doc := newArticle(t, lib, "Über Gewissheit")
	assert.ErrorIs(t, c.AddEntry(doc), model.ErrInvalidArgument)
	id := store(t, doc)

	require.NoError(t, c.AddEntry(doc))
	require.NoError(t, c.AddEntry(doc))
	assert.Equal(t, 1, tu.CountRows(t, lib.Adapter(), "link_documents_collections", "collection_id = ?", c.ID()))

	entries, err = c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID())

	loaded, err := lib.Document(id)
	require.NoError(t, err)
	collections, err := loaded.Get("Collection")
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "Philosophie", collections.([]any)[0].(model.Model).DisplayName())

	person := newPerson(t, lib, "Ludwig", "Wittgenstein")
	store(t, person)
	assert.ErrorIs(t, c.AddEntry(person), model.ErrInvalidArgument)
}

func TestOrganisationalUnits(t *testing.T) {
	lib := setupLibrary(t)

	units, err := lib.OrganisationalUnits()
	require.NoError(t, err)
	assert.Empty(t, units)

	publisher, err := lib.NewOrganisationalUnit(0, 0)
	require.NoError(t, err)
	require.NoError(t, publisher.Set("Name", "Universitätsverlag"))
	require.NoError(t, publisher.Set("IsPublisher", true))
	store(t, publisher)

	units, err = lib.OrganisationalUnits()
	require.NoError(t, err)
	assert.Len(t, units, 1)

	grantor, err := lib.NewOrganisationalUnit(0, publisher.ID())
	require.NoError(t, err)
	require.NoError(t, grantor.Set("Name", "Fakultät für Philosophie"))
	require.NoError(t, grantor.Set("IsGrantor", true))
	store(t, grantor)

	publishers, err := lib.Publishers()
	require.NoError(t, err)
	assert.Equal(t, []string{"Universitätsverlag"}, unitNames(publishers))
	grantors, err := lib.Grantors()
	require.NoError(t, err)
	assert.Equal(t, []string{"Fakultät für Philosophie"}, unitNames(grantors))

	t.Run("Publisher Link", func(t *testing.T) {
		doc := newArticle(t, lib, "Über Gewissheit")
		f, err := doc.Field("Publisher")
		require.NoError(t, err)
		assert.Len(t, f.Default(), 1)

		_, err = doc.Add("Publisher", publisher.Entity)
		require.NoError(t, err)
		id := store(t, doc)
		assert.Equal(t, 1, tu.CountRows(t, lib.Adapter(), "link_documents_collections",
			"document_id = ? AND role = ? AND role_id = ?", id, "publisher", OrganisationalUnitsRole))

		entries, err := publisher.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)

		loaded, err := lib.Document(id)
		require.NoError(t, err)
		got, err := loaded.Get("Publisher")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Universitätsverlag", got.([]any)[0].(model.Model).DisplayName())
	})

	t.Run("Delete Flushes Cache", func(t *testing.T) {
		loaded, err := lib.Collection(grantor.ID())
		require.NoError(t, err)
		require.NoError(t, loaded.Delete())

		grantors, err := lib.Grantors()
		require.NoError(t, err)
		assert.Empty(t, grantors)
	})
}

func unitNames(units []*OrganisationalUnit) []string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name()
	}
	return names
}
