package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
)

// EnrichmentKey names a free-form document enrichment and the type its values follow.
type EnrichmentKey struct {
	*model.Entity
	lib *Library
}

// Name returns the key name.
func (k *EnrichmentKey) Name() string {
	v, _ := k.Get("Name")
	return stringValue(v)
}

// EnrichmentType returns the configured value type, nil when the key has no or an unknown type.
// Invalid options are logged and leave the type without options.
func (k *EnrichmentKey) EnrichmentType() EnrichmentType {
	v, _ := k.Get("Type")
	name := stringValue(v)
	if name == "" {
		return nil
	}
	t := NewEnrichmentType(name)
	if t == nil {
		k.Logger().Error("unknown enrichment type", "key", k.Name(), "type", name)
		return nil
	}
	options, _ := k.Get("Options")
	if err := t.SetOptions(stringValue(options)); err != nil {
		k.Logger().Warn("ignoring enrichment options", "key", k.Name(), "err", err)
	}
	return t
}

// OptionsPrintable returns the type options in readable form, "" without a type.
func (k *EnrichmentKey) OptionsPrintable() string {
	t := k.EnrichmentType()
	if t == nil {
		return ""
	}
	return t.OptionsPrintable()
}

// NewEnrichmentKey creates an unsaved key.
func (l *Library) NewEnrichmentKey(name string) (*EnrichmentKey, error) {
	e, err := l.registry.New(ClassEnrichmentKey)
	if err != nil {
		return nil, err
	}
	if err := e.Set("Name", name); err != nil {
		return nil, err
	}
	return &EnrichmentKey{Entity: e, lib: l}, nil
}

// EnrichmentKeys returns every key ordered by name. Without reload a cached list is returned.
func (l *Library) EnrichmentKeys(reload bool) ([]*EnrichmentKey, error) {
	if reload {
		l.keys.Delete(cacheAll)
	}
	return l.keys.Remember(cacheAll, func() ([]*EnrichmentKey, error) {
		table, err := l.registry.Table(ClassEnrichmentKey)
		if err != nil {
			return nil, err
		}
		rows, err := table.FetchAll(table.Select().OrderBy("name ASC"))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch enrichment keys: %w", err)
		}
		entities, err := l.registry.FromRows(ClassEnrichmentKey, rows)
		if err != nil {
			return nil, err
		}
		keys := make([]*EnrichmentKey, len(entities))
		for i, e := range entities {
			keys[i] = &EnrichmentKey{Entity: e, lib: l}
		}
		return keys, nil
	})
}

// FetchEnrichmentKeyByName returns the key called name, nil when there is none.
func (l *Library) FetchEnrichmentKeyByName(name string) (*EnrichmentKey, error) {
	if name == "" {
		return nil, nil
	}
	table, err := l.registry.Table(ClassEnrichmentKey)
	if err != nil {
		return nil, err
	}
	row, err := table.FetchRow(table.Select().Where("name = ?", name))
	if errors.Is(err, gateway.ErrRowNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch enrichment key %q: %w", name, err)
	}
	e, err := l.registry.FromRow(ClassEnrichmentKey, row)
	if err != nil {
		return nil, err
	}
	return &EnrichmentKey{Entity: e, lib: l}, nil
}

// EnrichmentKeysReferenced returns the distinct key names used by document enrichments.
func (l *Library) EnrichmentKeysReferenced() ([]string, error) {
	col, err := l.adapter.FetchCol(gateway.NewSelect("document_enrichments").
		Columns("key_name").
		Distinct().
		OrderBy("key_name ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch referenced enrichment keys: %w", err)
	}
	names := make([]string, 0, len(col))
	for _, v := range col {
		names = append(names, stringValue(v))
	}
	return names, nil
}

func (l *Library) enrichmentKeySchema() *model.Schema {
	return &model.Schema{
		Class: ClassEnrichmentKey,
		Table: "enrichmentkeys",
		Init: func(e *model.Entity) error {
			e.AddField(model.NewField("Name").SetMandatory(true).AddValidator(model.NotEmpty()))
			addFields(e, "Type", "Options")
			return nil
		},
		PostStore:   l.flushKeys,
		DisplayName: displayField("Name"),
	}
}

func (l *Library) flushKeys(*model.Entity) error {
	l.keys.Flush()
	return nil
}

// EnrichmentType validates enrichment values of a key and describes its options.
type EnrichmentType interface {
	Name() string
	// SetOptions reads the JSON options stored with the key. Empty options reset them.
	SetOptions(options string) error
	Validate(value string) error
	OptionsPrintable() string
}

// NewEnrichmentType returns the type called name, nil when it is unknown.
func NewEnrichmentType(name string) EnrichmentType {
	switch name {
	case "TextType":
		return &TextType{}
	case "TextareaType":
		return &TextareaType{}
	case "BooleanType":
		return &BooleanType{}
	case "SelectType":
		return &SelectType{}
	case "RegexType":
		return &RegexType{}
	}
	return nil
}

// EnrichmentTypeNames returns the names of the known types.
func EnrichmentTypeNames() []string {
	return []string{"BooleanType", "RegexType", "SelectType", "TextType", "TextareaType"}
}

// TextType accepts any single-line value.
type TextType struct{}

func (*TextType) Name() string             { return "TextType" }
func (*TextType) SetOptions(string) error  { return nil }
func (*TextType) OptionsPrintable() string { return "" }
func (*TextType) Validate(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: text must be a single line", ErrEnrichmentValue)
	}
	return nil
}

// TextareaType accepts any value.
type TextareaType struct{}

func (*TextareaType) Name() string             { return "TextareaType" }
func (*TextareaType) SetOptions(string) error  { return nil }
func (*TextareaType) OptionsPrintable() string { return "" }
func (*TextareaType) Validate(string) error    { return nil }

// BooleanType accepts boolean literals such as 1, 0, true and false.
type BooleanType struct{}

func (*BooleanType) Name() string             { return "BooleanType" }
func (*BooleanType) SetOptions(string) error  { return nil }
func (*BooleanType) OptionsPrintable() string { return "" }
func (*BooleanType) Validate(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("%w: %q is not a boolean", ErrEnrichmentValue, value)
	}
	return nil
}

// SelectType accepts one of a list of values, configured as {"values": ["a", "b"]}.
type SelectType struct {
	Values []string `json:"values"`
}

func (*SelectType) Name() string { return "SelectType" }

func (t *SelectType) SetOptions(options string) error {
	t.Values = nil
	if options == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(options), t); err != nil {
		return fmt.Errorf("%w: %v", ErrEnrichmentOptions, err)
	}
	return nil
}

func (t *SelectType) Validate(value string) error {
	if !slices.Contains(t.Values, value) {
		return fmt.Errorf("%w: %q is not one of %s", ErrEnrichmentValue, value, t.OptionsPrintable())
	}
	return nil
}

func (t *SelectType) OptionsPrintable() string {
	return strings.Join(t.Values, ", ")
}

// RegexType accepts values matching a pattern, configured as {"regex": "^\\d+$"}.
type RegexType struct {
	Regex string `json:"regex"`
	re    *regexp.Regexp
}

func (*RegexType) Name() string { return "RegexType" }

func (t *RegexType) SetOptions(options string) error {
	t.Regex, t.re = "", nil
	if options == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(options), t); err != nil {
		return fmt.Errorf("%w: %v", ErrEnrichmentOptions, err)
	}
	re, err := regexp.Compile(t.Regex)
	if err != nil {
		t.Regex = ""
		return fmt.Errorf("%w: %v", ErrEnrichmentOptions, err)
	}
	t.re = re
	return nil
}

func (t *RegexType) Validate(value string) error {
	if t.re == nil {
		return nil
	}
	if !t.re.MatchString(value) {
		return fmt.Errorf("%w: %q does not match %s", ErrEnrichmentValue, value, t.Regex)
	}
	return nil
}

func (t *RegexType) OptionsPrintable() string { return t.Regex }
