package model

import (
	"fmt"
	"reflect"
)

// Unbounded is the multiplicity of fields that accept any number of values.
const Unbounded = -1

// Factory creates a fresh model to be used as a field value.
type Factory func() (Model, error)

// LinkFactory wraps a target model into a link model.
type LinkFactory func(target Model) (Model, error)

// Field is a named value holder with dirty tracking.
//
// A field with multiplicity 1 holds a single value; any other multiplicity holds a list, bounded
// unless the multiplicity is [Unbounded].
type Field struct {
	name         string
	values       []any
	multiplicity int
	mandatory    bool
	selection    bool
	textarea     bool
	defaults     []any
	validators   []Validator
	modified     bool

	valueClass string
	linkClass  string
	newValue   Factory
	wrapLink   LinkFactory
}

// NewField creates a single-valued field.
func NewField(name string) *Field {
	return &Field{name: name, multiplicity: 1}
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// SetMultiplicity sets how many values the field holds. Use [Unbounded] for no limit.
func (f *Field) SetMultiplicity(n int) *Field {
	if n == 0 || n < Unbounded {
		n = 1
	}
	f.multiplicity = n
	return f
}

// Multiplicity returns the configured multiplicity.
func (f *Field) Multiplicity() int { return f.multiplicity }

// HasMultipleValues reports whether the field holds a list.
func (f *Field) HasMultipleValues() bool { return f.multiplicity != 1 }

// SetMandatory marks the field as required.
func (f *Field) SetMandatory(v bool) *Field {
	f.mandatory = v
	return f
}

// IsMandatory reports whether the field is required.
func (f *Field) IsMandatory() bool { return f.mandatory }

// SetSelection marks the field as a choice among its defaults.
func (f *Field) SetSelection(v bool) *Field {
	f.selection = v
	return f
}

// IsSelection reports whether the field is a choice among its defaults.
func (f *Field) IsSelection() bool { return f.selection }

// SetTextarea marks the field as long text.
func (f *Field) SetTextarea(v bool) *Field {
	f.textarea = v
	return f
}

// IsTextarea reports whether the field holds long text.
func (f *Field) IsTextarea() bool { return f.textarea }

// SetDefault sets the default values, which are the choices of a selection field.
func (f *Field) SetDefault(values ...any) *Field {
	f.defaults = values
	return f
}

// Default returns the default values.
func (f *Field) Default() []any { return f.defaults }

// AddValidator appends a validator run against every value.
func (f *Field) AddValidator(v Validator) *Field {
	f.validators = append(f.validators, v)
	return f
}

// SetValueModelClass declares the model class of the field's values and how to create one.
func (f *Field) SetValueModelClass(class string, factory Factory) *Field {
	f.valueClass = class
	f.newValue = factory
	return f
}

// ValueModelClass returns the model class of the field's values, empty for scalar fields.
func (f *Field) ValueModelClass() string { return f.valueClass }

// SetLinkModelClass declares that values are stored through link models of class.
func (f *Field) SetLinkModelClass(class string, wrap LinkFactory) *Field {
	f.linkClass = class
	f.wrapLink = wrap
	return f
}

// LinkModelClass returns the link model class, empty for direct fields.
func (f *Field) LinkModelClass() string { return f.linkClass }

// Value returns the single value, or a copy of the value list for multi-valued fields.
func (f *Field) Value() any {
	if f.HasMultipleValues() {
		return f.Values()
	}
	if len(f.values) == 0 {
		return nil
	}
	return f.values[0]
}

// Values returns a copy of all values as a list.
func (f *Field) Values() []any {
	out := make([]any, len(f.values))
	copy(out, f.values)
	return out
}

// ValueAt returns the value at index i.
func (f *Field) ValueAt(i int) (any, error) {
	if i < 0 || i >= len(f.values) {
		return nil, fmt.Errorf("%w: %s has no value at index %d", ErrInvalidArgument, f.name, i)
	}
	return f.values[i], nil
}

// Len returns the number of values held.
func (f *Field) Len() int { return len(f.values) }

// SetValue replaces the field's value. Multi-valued fields accept a slice or a single value;
// more values than the multiplicity allows fail with [ErrInvalidArgument].
func (f *Field) SetValue(v any) error {
	values, err := f.normalize(v)
	if err != nil {
		return err
	}
	if !f.HasMultipleValues() && len(values) > 1 {
		return fmt.Errorf("%w: %s holds a single value", ErrInvalidArgument, f.name)
	}
	if f.multiplicity != Unbounded && len(values) > f.multiplicity {
		return fmt.Errorf("%w: %s accepts at most %d values, got %d", ErrInvalidArgument, f.name, f.multiplicity, len(values))
	}
	for i, val := range values {
		wrapped, err := f.wrap(val)
		if err != nil {
			return err
		}
		values[i] = wrapped
	}

	if !sameValues(f.values, values) {
		f.modified = true
	}
	f.values = values
	return nil
}

// AddValue appends a value and returns what was stored. A nil value on a model-valued field adds a
// freshly created model. Adding to a populated single-valued field or past the multiplicity fails with
// [ErrInvalidArgument].
func (f *Field) AddValue(v any) (any, error) {
	if !f.HasMultipleValues() && len(f.values) > 0 {
		return nil, fmt.Errorf("%w: %s already holds a value", ErrInvalidArgument, f.name)
	}
	if f.multiplicity != Unbounded && len(f.values) >= f.multiplicity {
		return nil, fmt.Errorf("%w: %s accepts at most %d values", ErrInvalidArgument, f.name, f.multiplicity)
	}

	if v == nil {
		if f.newValue == nil {
			return nil, fmt.Errorf("%w: cannot add an empty value to %s", ErrInvalidArgument, f.name)
		}
		m, err := f.newValue()
		if err != nil {
			return nil, err
		}
		v = m
	}

	wrapped, err := f.wrap(v)
	if err != nil {
		return nil, err
	}
	f.values = append(f.values, wrapped)
	f.modified = true
	return wrapped, nil
}

// setLoaded replaces the values without multiplicity checks or dirty tracking.
func (f *Field) setLoaded(values []any) {
	f.values = values
	f.modified = false
}

// IsModified reports whether the field or any model it holds changed.
func (f *Field) IsModified() bool {
	if f.modified {
		return true
	}
	for _, v := range f.values {
		if m, ok := v.(Model); ok && m.IsModified() {
			return true
		}
	}
	return false
}

// SetModified flags the field as changed.
func (f *Field) SetModified() { f.modified = true }

// ClearModified resets the dirty flag of the field and the models it holds.
func (f *Field) ClearModified() {
	f.modified = false
	for _, v := range f.values {
		if m, ok := v.(Model); ok {
			m.ClearModified()
		}
	}
}

// IsEmpty reports whether the field holds no meaningful value.
func (f *Field) IsEmpty() bool {
	for _, v := range f.values {
		if !isEmptyValue(v) {
			return false
		}
	}
	return true
}

// Validate checks mandatory presence, runs validators on scalar values and validates held models.
func (f *Field) Validate() error {
	if f.mandatory && f.IsEmpty() {
		return fmt.Errorf("%w: %s is mandatory", ErrValidation, f.name)
	}
	for _, v := range f.values {
		if m, ok := v.(Model); ok {
			if err := m.Validate(); err != nil {
				return err
			}
			continue
		}
		for _, validator := range f.validators {
			if err := validator.Validate(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Field) normalize(v any) ([]any, error) {
	if v == nil {
		return []any{}, nil
	}
	switch vv := v.(type) {
	case []any:
		out := make([]any, len(vv))
		copy(out, vv)
		return out, nil
	case []byte:
		return []any{string(vv)}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return []any{v}, nil
}

func (f *Field) wrap(v any) (any, error) {
	if f.linkClass == "" || f.wrapLink == nil {
		return v, nil
	}
	m, ok := v.(Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects %s models, got %T", ErrInvalidArgument, f.name, f.valueClass, v)
	}
	if m.Class() == f.linkClass {
		return m, nil
	}
	return f.wrapLink(m)
}

func sameValues(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ma, aIsModel := a[i].(Model)
		mb, bIsModel := b[i].(Model)
		if aIsModel || bIsModel {
			if !aIsModel || !bIsModel || ma != mb {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func isEmptyValue(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return vv == ""
	case []any:
		return len(vv) == 0
	}
	return false
}
