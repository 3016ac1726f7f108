package model

import (
	"errors"
	"reflect"
	"testing"
)

func TestField(t *testing.T) {
	t.Run("Single Value", func(t *testing.T) {
		f := NewField("Title")
		if f.Value() != nil {
			t.Errorf("expected nil value, got %v", f.Value())
		}
		if err := f.SetValue("Ein Titel"); err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
		if f.Value() != "Ein Titel" {
			t.Errorf("expected Ein Titel, got %v", f.Value())
		}
		if !f.IsModified() {
			t.Error("field should be modified after set")
		}
	})

	t.Run("Single Field Rejects Lists", func(t *testing.T) {
		f := NewField("Title")
		err := f.SetValue([]string{"a", "b"})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Multi Value", func(t *testing.T) {
		f := NewField("Language").SetMultiplicity(Unbounded)
		if got := f.Value(); !reflect.DeepEqual(got, []any{}) {
			t.Errorf("expected empty list, got %#v", got)
		}
		if err := f.SetValue([]string{"deu", "eng"}); err != nil {
			t.Fatalf("failed to set values: %v", err)
		}
		if got := f.Value(); !reflect.DeepEqual(got, []any{"deu", "eng"}) {
			t.Errorf("unexpected values %#v", got)
		}
		if err := f.SetValue("fra"); err != nil {
			t.Fatalf("failed to set scalar on multi field: %v", err)
		}
		if f.Len() != 1 {
			t.Errorf("expected scalar to be wrapped, got %d values", f.Len())
		}
	})

	t.Run("Multiplicity", func(t *testing.T) {
		tests := []struct {
			name         string
			multiplicity int
			values       any
			wantErr      bool
		}{
			{"within bounds", 2, []any{"a", "b"}, false},
			{"exceeds bounds", 2, []any{"a", "b", "c"}, true},
			{"unbounded", Unbounded, []any{"a", "b", "c", "d"}, false},
			{"single value", 1, "a", false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := NewField("F").SetMultiplicity(tt.multiplicity)
				err := f.SetValue(tt.values)
				if tt.wantErr && !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("Add Value", func(t *testing.T) {
		single := NewField("Single")
		if _, err := single.AddValue("a"); err != nil {
			t.Fatalf("failed to add to empty single field: %v", err)
		}
		if _, err := single.AddValue("b"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument on populated single field, got %v", err)
		}

		multi := NewField("Multi").SetMultiplicity(2)
		for _, v := range []string{"a", "b"} {
			got, err := multi.AddValue(v)
			if err != nil {
				t.Fatalf("failed to add %s: %v", v, err)
			}
			if got != v {
				t.Errorf("expected added value %s, got %v", v, got)
			}
		}
		if _, err := multi.AddValue("c"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument at capacity, got %v", err)
		}
	})

	t.Run("Add Nil Creates Model", func(t *testing.T) {
		f := NewField("Note").SetMultiplicity(Unbounded).SetValueModelClass("Note", func() (Model, error) {
			return NewAbstract("Note").AddField(NewField("Message")), nil
		})
		v, err := f.AddValue(nil)
		if err != nil {
			t.Fatalf("failed to add new model: %v", err)
		}
		m, ok := v.(Model)
		if !ok || m.Class() != "Note" {
			t.Fatalf("expected a Note model, got %T", v)
		}

		if _, err := NewField("Plain").AddValue(nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for nil on scalar field, got %v", err)
		}
	})

	t.Run("Modified Only On Change", func(t *testing.T) {
		f := NewField("Pages")
		f.setLoaded([]any{int64(12)})
		if err := f.SetValue(int64(12)); err != nil {
			t.Fatal(err)
		}
		if f.IsModified() {
			t.Error("setting the same value should not mark the field modified")
		}
		if err := f.SetValue(int64(13)); err != nil {
			t.Fatal(err)
		}
		if !f.IsModified() {
			t.Error("setting a new value should mark the field modified")
		}
		f.ClearModified()
		if f.IsModified() {
			t.Error("ClearModified should reset the flag")
		}
	})

	t.Run("Nested Model Modification", func(t *testing.T) {
		note := NewAbstract("Note").AddField(NewField("Message"))
		f := NewField("Note").SetMultiplicity(Unbounded)
		f.setLoaded([]any{note})

		if err := note.Set("Message", "changed"); err != nil {
			t.Fatal(err)
		}
		if !f.IsModified() {
			t.Error("field should report changes of held models")
		}
		f.ClearModified()
		if note.IsModified() {
			t.Error("ClearModified should reach held models")
		}
	})

	t.Run("Value At", func(t *testing.T) {
		f := NewField("Multi").SetMultiplicity(Unbounded)
		_ = f.SetValue([]any{"a", "b"})
		v, err := f.ValueAt(1)
		if err != nil || v != "b" {
			t.Errorf("expected b, got %v (%v)", v, err)
		}
		if _, err := f.ValueAt(2); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   *Field
		value   any
		wantErr error
	}{
		{"mandatory empty", NewField("Name").SetMandatory(true), nil, ErrValidation},
		{"mandatory empty string", NewField("Name").SetMandatory(true), "", ErrValidation},
		{"mandatory set", NewField("Name").SetMandatory(true), "x", nil},
		{"not empty", NewField("Name").AddValidator(NotEmpty()), "", ErrEmptyValue},
		{"valid date", NewField("DateAccepted").AddValidator(Date()), "2009-01-31", nil},
		{"valid timestamp", NewField("DateAccepted").AddValidator(Date()), "2009-01-31T10:00:00Z", nil},
		{"invalid date", NewField("DateAccepted").AddValidator(Date()), "31.01.2009", ErrInvalidDate},
		{"integer", NewField("Pages").AddValidator(Integer()), "42", nil},
		{"not integer", NewField("Pages").AddValidator(Integer()), "many", ErrNotInteger},
		{"selection", NewField("State").AddValidator(OneOf("published", "unpublished")), "published", nil},
		{"not in selection", NewField("State").AddValidator(OneOf("published", "unpublished")), "gone", ErrNotSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != nil {
				if err := tt.field.SetValue(tt.value); err != nil {
					t.Fatal(err)
				}
			}
			err := tt.field.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegexValidator(t *testing.T) {
	v, err := Regex(`^\d{4}$`)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	if err := v.Validate("2010"); err != nil {
		t.Errorf("expected 2010 to match: %v", err)
	}
	if err := v.Validate("20100"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
	if _, err := Regex("("); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for bad pattern, got %v", err)
	}
}
