package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	doctype, workflow string
	title             string
	state, published  string
	author            []string
}

// setupQueryLibrary stores three documents:
//
//	1 article "Zettel" published 2009-01-15 by Wittgenstein
//	2 article "Anfang" unpublished 2009-01-31 by Frege
//	3 report  "Mitte"  published 2009-02-01 without author
func setupQueryLibrary(t *testing.T) *Library {
	t.Helper()
	lib := setupLibrary(t)
	fixtures := []fixture{
		{"article", DefaultWorkflow, "Zettel", StatePublished, "2009-01-15", []string{"Ludwig", "Wittgenstein"}},
		{"article", DefaultWorkflow, "Anfang", StateUnpublished, "2009-01-31T10:00:00Z", []string{"Gottlob", "Frege"}},
		{"report", "institute", "Mitte", StatePublished, "2009-02-01", nil},
	}
	for _, f := range fixtures {
		doc, err := lib.NewDocument(f.doctype, f.workflow)
		require.NoError(t, err)
		addTitle(t, doc, "TitleMain", f.title, "deu")
		require.NoError(t, doc.Set("ServerState", f.state))
		require.NoError(t, doc.Set("ServerDatePublished", f.published))
		if f.author != nil {
			_, err := doc.Add("PersonAuthor", newPerson(t, lib, f.author[0], f.author[1]))
			require.NoError(t, err)
		}
		store(t, doc)
	}
	return lib
}

func TestSortedIds(t *testing.T) {
	lib := setupQueryLibrary(t)

	tests := []struct {
		name string
		run  func() ([]int64, error)
		want []int64
	}{
		{"all ids", func() ([]int64, error) { return lib.GetAllIds(false) }, []int64{1, 2, 3}},
		{"all ids reversed", func() ([]int64, error) { return lib.GetAllIds(true) }, []int64{3, 2, 1}},
		{"by state", func() ([]int64, error) { return lib.GetAllIdsByState(StatePublished) }, []int64{1, 3}},
		{"by titles", func() ([]int64, error) { return lib.GetAllDocumentsByTitles(false) }, []int64{2, 3, 1}},
		{"by titles in state", func() ([]int64, error) { return lib.GetAllDocumentsByTitlesByState(StatePublished, false) }, []int64{3, 1}},
		{"by authors", func() ([]int64, error) { return lib.GetAllDocumentsByAuthors(false) }, []int64{3, 2, 1}},
		{"by authors reversed", func() ([]int64, error) { return lib.GetAllDocumentsByAuthors(true) }, []int64{1, 2, 3}},
		{"by authors in state", func() ([]int64, error) { return lib.GetAllDocumentsByAuthorsByState(StatePublished, false) }, []int64{3, 1}},
		{"by doctype reversed", func() ([]int64, error) { return lib.GetAllDocumentsByDoctype(true) }, []int64{3, 1, 2}},
		{"by doctype in state", func() ([]int64, error) { return lib.GetAllDocumentsByDoctypeByState(StateUnpublished, false) }, []int64{2}},
		{"by publication date", func() ([]int64, error) { return lib.GetAllDocumentsByPubDate(false) }, []int64{1, 2, 3}},
		{"by publication date reversed", func() ([]int64, error) { return lib.GetAllDocumentsByPubDate(true) }, []int64{3, 2, 1}},
		{"by publication date in state", func() ([]int64, error) { return lib.GetAllDocumentsByPubDateByState(StatePublished, true) }, []int64{3, 1}},
		{
			"type then date",
			func() ([]int64, error) {
				return lib.GetAllDocumentIdsSorted(SortOption{Key: "type", Reverse: true}, SortOption{Key: "date", Reverse: true})
			},
			[]int64{3, 2, 1},
		},
		{
			"title and author in state",
			func() ([]int64, error) {
				return lib.GetAllDocumentIdsSortedByState(StatePublished, SortOption{Key: "author"}, SortOption{Key: "title"})
			},
			[]int64{3, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Invalid Key", func(t *testing.T) {
		_, err := lib.GetAllDocumentIdsSorted(SortOption{Key: "colour"})
		assert.ErrorIs(t, err, ErrInvalidSort)
	})
}

func TestDocumentQueries(t *testing.T) {
	lib := setupQueryLibrary(t)

	t.Run("Get All", func(t *testing.T) {
		docs, err := lib.GetAll()
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "report", docs[2].Type())

		docs, err = lib.GetAll(2)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, StateUnpublished, docs[0].ServerState())
	})

	t.Run("Get All By State", func(t *testing.T) {
		docs, err := lib.GetAllByState(StatePublished)
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = lib.GetAllByState(StateDeleted)
		require.NoError(t, err)
		assert.Nil(t, docs)
	})

	t.Run("Latest", func(t *testing.T) {
		ids, err := lib.GetLatestIds(1)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, ids)

		ids, err = lib.GetLatestIds(10)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1}, ids)
	})

	t.Run("Earliest Publication Date", func(t *testing.T) {
		date, err := lib.GetEarliestPublicationDate()
		require.NoError(t, err)
		assert.Equal(t, "2009-01-15", date)
	})

	t.Run("By Doctype", func(t *testing.T) {
		ids, err := lib.GetIdsForDocType("article")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)

		ids, err = lib.GetIdsForDocType("thesis")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Date Range", func(t *testing.T) {
		ids, err := lib.GetIdsForDateRange("2009-01-01", "2009-01-31")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)

		ids, err = lib.GetIdsForDateRange("2009-01-31", "2009-01-31")
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, ids)

		ids, err = lib.GetIdsForDateRange("", "")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)

		_, err = lib.GetIdsForDateRange("31.01.2009", "")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("Oai Request", func(t *testing.T) {
		tests := []struct {
			name string
			r    OaiRestriction
			want []int64
		}{
			{"no restriction", OaiRestriction{}, []int64{1, 2, 3}},
			{"state", OaiRestriction{ServerState: []string{StatePublished}}, []int64{1, 3}},
			{"state and type", OaiRestriction{ServerState: []string{StatePublished}, Type: []string{"article"}}, []int64{1}},
			{"type and date", OaiRestriction{Type: []string{"article"}, Date: &DateRange{From: "2009-01-20", Until: "2009-02-28"}}, []int64{2}},
			{"open date", OaiRestriction{Type: []string{"report"}, Date: &DateRange{}}, []int64{3}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ids, err := lib.GetIdsOfOaiRequest(tt.r)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids)
			})
		}

		_, err := lib.GetIdsOfOaiRequest(OaiRestriction{Date: &DateRange{Until: "soon"}})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("Titles", func(t *testing.T) {
		doc, err := lib.Document(1)
		require.NoError(t, err)
		addTitle(t, doc, "TitleMain", "Zettel (Notes)", "eng")
		store(t, doc)

		titles, err := lib.GetAllDocumentTitles()
		require.NoError(t, err)
		assert.Equal(t, map[int64][]string{
			1: {"Zettel", "Zettel (Notes)"},
			2: {"Anfang"},
			3: {"Mitte"},
		}, titles)

		titles, err = lib.GetAllDocumentTitles(2)
		require.NoError(t, err)
		assert.Equal(t, map[int64][]string{2: {"Anfang"}}, titles)
	})
}

func TestLatestIdsDefault(t *testing.T) {
	lib := setupLibrary(t)
	for day := 1; day <= 12; day++ {
		doc, err := lib.NewDocument("article", DefaultWorkflow)
		require.NoError(t, err)
		require.NoError(t, doc.Set("ServerState", StatePublished))
		require.NoError(t, doc.Set("ServerDatePublished", fmt.Sprintf("2010-03-%02d", day)))
		store(t, doc)
	}

	for _, n := range []int{0, -1} {
		ids, err := lib.GetLatestIds(n)
		require.NoError(t, err)
		require.Len(t, ids, 10, "n=%d", n)
		assert.Equal(t, int64(12), ids[0])
		assert.Equal(t, int64(3), ids[9])
	}

	ids, err := lib.GetLatestIds(20)
	require.NoError(t, err)
	assert.Len(t, ids, 12)
}
