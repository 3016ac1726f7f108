package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/raminkhorsandi/framework/internal/gateway"
)

// FetchMode tells when an external field is loaded.
type FetchMode int

const (
	// Eager loads the field together with the primary row.
	Eager FetchMode = iota
	// Lazy loads the field the first time it is touched.
	Lazy
)

// Hook runs at a point of an entity's lifecycle.
type Hook func(e *Entity) error

// Schema declares how a model class maps onto the database.
type Schema struct {
	// Class is the model class name.
	Class string
	// Table is the primary table. Primary defaults to "id".
	Table   string
	Primary string
	// TableOptions are applied to every table gateway of the class.
	TableOptions []gateway.TableOption

	// Parent is the column referencing the owning model of dependent models ("document_id").
	Parent string
	// Link turns the class into a link model pointing at another model.
	Link *Link

	// Init declares the fields. It runs before any value is fetched.
	Init Hook
	// Externals are fields stored outside the primary row, in declaration order. An external
	// whose field Init did not declare is ignored for that entity.
	Externals []External
	// Codecs override how internal fields are read from and written to their column.
	Codecs map[string]Codec
	// Hidden fields are left out of exports.
	Hidden []string
	// ReadOnly fields ignore Set once the entity is constructed.
	ReadOnly []string

	PreStore  Hook
	PostStore Hook
	PreDelete Hook

	DisplayName func(e *Entity) string
	ToArray     func(e *Entity) (map[string]any, error)
}

// Link describes the target of a link model.
type Link struct {
	// Model is the linked class.
	Model string
	// Key is the column holding the linked model's id.
	Key string
	// Display names the field used as display name of the link.
	Display string
}

// External declares a field that is loaded and stored through other tables.
type External struct {
	Name string
	// Model is the class of the field's values.
	Model string
	// Through is the link class for many-to-many fields. Empty for dependent models.
	Through string
	// Options are extra column values on the value (or link) table, used as filters on load
	// and written on store. A nil option value matches NULL.
	Options map[string]any
	// Sort orders loaded values, e.g. "sort_order ASC".
	Sort  []string
	Fetch FetchMode

	// Load replaces the default loading.
	Load func(e *Entity) ([]any, error)
	// Save replaces the default storing. It is called on every store.
	Save func(e *Entity, f *Field) error
	// Transient fields are never stored.
	Transient bool
}

// Codec converts between a field value and its column value.
type Codec struct {
	// Column overrides the column derived from the field name.
	Column string
	Fetch  func(e *Entity, raw any) ([]any, error)
	Store  func(e *Entity, f *Field) (any, error)
}

func (s *Schema) validate() error {
	if s.Class == "" {
		return fmt.Errorf("%w: schema without class", ErrModel)
	}
	if !gateway.IsValidIdentifier(s.Table) {
		return fmt.Errorf("%w: %s has invalid table %q", ErrModel, s.Class, s.Table)
	}
	if s.Primary == "" {
		s.Primary = "id"
	}
	if s.Link != nil && (s.Link.Model == "" || s.Link.Key == "") {
		return fmt.Errorf("%w: %s link needs model and key", ErrModel, s.Class)
	}
	seen := make(map[string]bool, len(s.Externals))
	for _, ext := range s.Externals {
		if ext.Name == "" || seen[ext.Name] {
			return fmt.Errorf("%w: %s has unnamed or duplicate external %q", ErrModel, s.Class, ext.Name)
		}
		seen[ext.Name] = true
	}
	return nil
}

func (s *Schema) external(name string) (External, bool) {
	for _, ext := range s.Externals {
		if ext.Name == name {
			return ext, true
		}
	}
	return External{}, false
}

func (s *Schema) isReadOnly(name string) bool {
	return slices.Contains(s.ReadOnly, name)
}

func (s *Schema) column(field string) string {
	if c, ok := s.Codecs[field]; ok && c.Column != "" {
		return c.Column
	}
	return Column(field)
}

// ListCodec stores a multi-valued field as one column joined by sep.
func ListCodec(sep string) Codec {
	return Codec{
		Fetch: func(_ *Entity, raw any) ([]any, error) {
			if raw == nil {
				return nil, nil
			}
			s, ok := raw.(string)
			if !ok {
				return []any{raw}, nil
			}
			if s == "" {
				return nil, nil
			}
			parts := strings.Split(s, sep)
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		},
		Store: func(_ *Entity, f *Field) (any, error) {
			values := f.Values()
			if len(values) == 0 {
				return nil, nil
			}
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprint(v)
			}
			return strings.Join(parts, sep), nil
		},
	}
}

// BoolCodec maps integer flag columns to booleans.
func BoolCodec() Codec {
	return Codec{
		Fetch: func(_ *Entity, raw any) ([]any, error) {
			if raw == nil {
				return nil, nil
			}
			return []any{ToBool(raw)}, nil
		},
		Store: func(_ *Entity, f *Field) (any, error) {
			v := f.Value()
			if v == nil {
				return nil, nil
			}
			if ToBool(v) {
				return 1, nil
			}
			return 0, nil
		},
	}
}

// ToBool interprets flag values such as 1, "1", "true" and true.
func ToBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "1" || strings.EqualFold(b, "true")
	}
	n, ok := gateway.ToInt64(v)
	return ok && n != 0
}
