package domain

import (
	"testing"

	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentTypes(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		options string
		value   string
		wantErr error
	}{
		{"text", "TextType", "", "Nachlass", nil},
		{"text with newline", "TextType", "", "Nach\nlass", ErrEnrichmentValue},
		{"textarea with newline", "TextareaType", "", "Nach\nlass", nil},
		{"boolean", "BooleanType", "", "true", nil},
		{"boolean digit", "BooleanType", "", "0", nil},
		{"not boolean", "BooleanType", "", "yes", ErrEnrichmentValue},
		{"select", "SelectType", `{"values": ["print", "online"]}`, "online", nil},
		{"not selected", "SelectType", `{"values": ["print", "online"]}`, "audio", ErrEnrichmentValue},
		{"regex", "RegexType", `{"regex": "^\\d{4}$"}`, "1951", nil},
		{"regex mismatch", "RegexType", `{"regex": "^\\d{4}$"}`, "51", ErrEnrichmentValue},
		{"regex without options", "RegexType", "", "anything", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := NewEnrichmentType(tt.typ)
			require.NotNil(t, typ)
			assert.Equal(t, tt.typ, typ.Name())
			require.NoError(t, typ.SetOptions(tt.options))

			err := typ.Validate(tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("Invalid Options", func(t *testing.T) {
		assert.ErrorIs(t, NewEnrichmentType("SelectType").SetOptions("[1"), ErrEnrichmentOptions)
		assert.ErrorIs(t, NewEnrichmentType("RegexType").SetOptions(`{"regex": "("}`), ErrEnrichmentOptions)
	})

	t.Run("Printable Options", func(t *testing.T) {
		typ := NewEnrichmentType("SelectType")
		require.NoError(t, typ.SetOptions(`{"values": ["print", "online"]}`))
		assert.Equal(t, "print, online", typ.OptionsPrintable())
		assert.Empty(t, NewEnrichmentType("TextType").OptionsPrintable())
	})

	t.Run("Names", func(t *testing.T) {
		assert.Nil(t, NewEnrichmentType("ColourType"))
		for _, name := range EnrichmentTypeNames() {
			assert.NotNil(t, NewEnrichmentType(name), name)
		}
	})
}

func newEnrichmentKey(t *testing.T, lib *Library, name, typ, options string) *EnrichmentKey {
	t.Helper()
	key, err := lib.NewEnrichmentKey(name)
	require.NoError(t, err)
	require.NoError(t, key.Set("Type", typ))
	require.NoError(t, key.Set("Options", options))
	store(t, key)
	return key
}

func TestEnrichmentKeys(t *testing.T) {
	t.Run("Name Is Mandatory", func(t *testing.T) {
		lib := setupLibrary(t)
		key, err := lib.NewEnrichmentKey("")
		require.NoError(t, err)
		assert.ErrorIs(t, key.Validate(), model.ErrValidation)
	})

	t.Run("Ordered And Cached", func(t *testing.T) {
		lib := setupLibrary(t)
		newEnrichmentKey(t, lib, "source", "TextType", "")
		newEnrichmentKey(t, lib, "medium", "SelectType", `{"values": ["print", "online"]}`)

		keys, err := lib.EnrichmentKeys(false)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "medium", keys[0].Name())
		assert.Equal(t, "print, online", keys[0].OptionsPrintable())

		_, err = lib.Adapter().Exec("INSERT INTO enrichmentkeys (name) VALUES (?)", "audience")
		require.NoError(t, err)
		keys, err = lib.EnrichmentKeys(false)
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		keys, err = lib.EnrichmentKeys(true)
		require.NoError(t, err)
		require.Len(t, keys, 3)
		assert.Equal(t, "audience", keys[0].Name())
		assert.Nil(t, keys[0].EnrichmentType())
	})

	t.Run("Store Flushes Cache", func(t *testing.T) {
		lib := setupLibrary(t)
		keys, err := lib.EnrichmentKeys(false)
		require.NoError(t, err)
		assert.Empty(t, keys)

		newEnrichmentKey(t, lib, "source", "TextType", "")
		keys, err = lib.EnrichmentKeys(false)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("Fetch By Name", func(t *testing.T) {
		lib := setupLibrary(t)
		newEnrichmentKey(t, lib, "year", "RegexType", `{"regex": "^\\d{4}$"}`)

		key, err := lib.FetchEnrichmentKeyByName("year")
		require.NoError(t, err)
		require.NotNil(t, key)
		typ := key.EnrichmentType()
		require.NotNil(t, typ)
		assert.NoError(t, typ.Validate("1951"))
		assert.Equal(t, `^\d{4}$`, key.OptionsPrintable())

		key, err = lib.FetchEnrichmentKeyByName("missing")
		require.NoError(t, err)
		assert.Nil(t, key)
		key, err = lib.FetchEnrichmentKeyByName("")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("Unknown Type And Broken Options", func(t *testing.T) {
		lib := setupLibrary(t)
		unknown := newEnrichmentKey(t, lib, "colour", "ColourType", "")
		assert.Nil(t, unknown.EnrichmentType())
		assert.Empty(t, unknown.OptionsPrintable())

		broken := newEnrichmentKey(t, lib, "medium", "SelectType", "[1")
		typ := broken.EnrichmentType()
		require.NotNil(t, typ)
		assert.Empty(t, typ.OptionsPrintable())
	})

	t.Run("Referenced", func(t *testing.T) {
		lib := setupLibrary(t)
		for _, names := range [][]string{{"source", "year"}, {"source"}} {
			doc := newArticle(t, lib, "Über Gewissheit")
			for _, name := range names {
				v, err := doc.Add("Enrichment", nil)
				require.NoError(t, err)
				require.NoError(t, v.(model.Model).Set("KeyName", name))
				require.NoError(t, v.(model.Model).Set("Value", "1951"))
			}
			store(t, doc)
		}

		names, err := lib.EnrichmentKeysReferenced()
		require.NoError(t, err)
		assert.Equal(t, []string{"source", "year"}, names)
	})
}
