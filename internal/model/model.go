package model

import (
	"fmt"
)

// Model is a named set of fields.
type Model interface {
	Class() string
	Field(name string) (*Field, error)
	FieldNames() []string
	Get(name string) (any, error)
	Set(name string, v any) error
	Add(name string, v any) (any, error)
	IsModified() bool
	ClearModified()
	Validate() error
	ToArray() (map[string]any, error)
	DisplayName() string
	ResourceID() string
}

// Persistent is a [Model] backed by a table row.
type Persistent interface {
	Model
	ID() int64
	IsNewRecord() bool
	Store() (int64, error)
	Delete() error
}

// Abstract is an in-memory [Model]. Fields keep the order they were added in.
type Abstract struct {
	class  string
	fields []*Field
	index  map[string]int
	hidden map[string]bool
}

// NewAbstract creates an empty model of the given class.
func NewAbstract(class string) *Abstract {
	return &Abstract{class: class, index: make(map[string]int), hidden: make(map[string]bool)}
}

// Class returns the model class name.
func (a *Abstract) Class() string { return a.class }

// AddField adds f, replacing a field with the same name.
func (a *Abstract) AddField(f *Field) *Abstract {
	if i, ok := a.index[f.Name()]; ok {
		a.fields[i] = f
		return a
	}
	a.index[f.Name()] = len(a.fields)
	a.fields = append(a.fields, f)
	return a
}

// HasField reports whether the model declares name.
func (a *Abstract) HasField(name string) bool {
	_, ok := a.index[name]
	return ok
}

func (a *Abstract) field(name string) (*Field, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.fields[i], true
}

// Field returns the named field or [ErrUnknownField].
func (a *Abstract) Field(name string) (*Field, error) {
	f, ok := a.field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, a.class, name)
	}
	return f, nil
}

// FieldNames returns the field names in declaration order.
func (a *Abstract) FieldNames() []string {
	names := make([]string, len(a.fields))
	for i, f := range a.fields {
		names[i] = f.Name()
	}
	return names
}

// Get returns the value of the named field.
func (a *Abstract) Get(name string) (any, error) {
	f, err := a.Field(name)
	if err != nil {
		return nil, err
	}
	return f.Value(), nil
}

// Set replaces the value of the named field.
func (a *Abstract) Set(name string, v any) error {
	f, err := a.Field(name)
	if err != nil {
		return err
	}
	return f.SetValue(v)
}

// Add appends a value to the named field. A nil value on a model-valued field adds a new model.
func (a *Abstract) Add(name string, v any) (any, error) {
	f, err := a.Field(name)
	if err != nil {
		return nil, err
	}
	return f.AddValue(v)
}

// SetHidden excludes fields from [Abstract.ToArray] and XML output.
func (a *Abstract) SetHidden(names ...string) {
	for _, n := range names {
		a.hidden[n] = true
	}
}

// IsHidden reports whether a field is excluded from exports.
func (a *Abstract) IsHidden(name string) bool {
	return a.hidden[name]
}

// IsModified reports whether any field changed.
func (a *Abstract) IsModified() bool {
	for _, f := range a.fields {
		if f.IsModified() {
			return true
		}
	}
	return false
}

// ClearModified resets the dirty flags of all fields.
func (a *Abstract) ClearModified() {
	for _, f := range a.fields {
		f.ClearModified()
	}
}

// Validate validates every field and returns the first failure as a [ValidationError].
func (a *Abstract) Validate() error {
	for _, f := range a.fields {
		if err := f.Validate(); err != nil {
			return &ValidationError{Class: a.class, Field: f.Name(), Err: err}
		}
	}
	return nil
}

// IsValid reports whether [Abstract.Validate] passes.
func (a *Abstract) IsValid() bool {
	return a.Validate() == nil
}

// ToArray returns the visible field values as a map. Multi-valued fields become lists and model
// values are converted recursively.
func (a *Abstract) ToArray() (map[string]any, error) {
	out := make(map[string]any, len(a.fields))
	for _, f := range a.fields {
		if a.hidden[f.Name()] {
			continue
		}
		v, err := FieldArray(f)
		if err != nil {
			return nil, err
		}
		out[f.Name()] = v
	}
	return out, nil
}

// DisplayName returns the class name.
func (a *Abstract) DisplayName() string { return a.class }

// ResourceID returns the class name.
func (a *Abstract) ResourceID() string { return a.class }

// FieldArray converts a field's value for [Model.ToArray].
func FieldArray(f *Field) (any, error) {
	if !f.HasMultipleValues() {
		return valueArray(f.Value())
	}
	values := f.Values()
	out := make([]any, len(values))
	for i, v := range values {
		conv, err := valueArray(v)
		if err != nil {
			return nil, err
		}
		out[i] = conv
	}
	return out, nil
}

func valueArray(v any) (any, error) {
	if m, ok := v.(Model); ok {
		return m.ToArray()
	}
	return v, nil
}
