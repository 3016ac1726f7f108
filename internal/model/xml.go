package model

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"time"
)

// XMLRoot is the document element wrapping serialized models.
const XMLRoot = "Opus"

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

type hider interface {
	IsHidden(name string) bool
}

// ToXML serializes m as <Opus><Class .../></Opus>. Single scalar values become attributes, multiple
// scalar values and model values become child elements named after their field.
func ToXML(m Model) ([]byte, error) {
	node, err := toNode(m.Class(), m)
	if err != nil {
		return nil, err
	}
	root := xmlNode{XMLName: xml.Name{Local: XMLRoot}, Children: []xmlNode{node}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Class(), err)
	}
	return buf.Bytes(), nil
}

// ToXML serializes the entity, loading pending fields first.
func (e *Entity) ToXML() ([]byte, error) {
	if err := e.LoadAll(); err != nil {
		return nil, err
	}
	return ToXML(e)
}

func toNode(name string, m Model) (xmlNode, error) {
	n := xmlNode{XMLName: xml.Name{Local: name}}
	seen := make(map[string]bool)

	sources := []Model{m}
	if e, ok := m.(*Entity); ok {
		if err := e.LoadAll(); err != nil {
			return n, err
		}
		if e.linked != nil {
			sources = []Model{e.linked, m}
		}
	}

	// own fields are visited last and win over the linked model's
	for i := len(sources) - 1; i >= 0; i-- {
		src := sources[i]
		h, _ := src.(hider)
		for _, fname := range src.FieldNames() {
			if seen[fname] || (h != nil && h.IsHidden(fname)) {
				continue
			}
			seen[fname] = true
			f, err := src.Field(fname)
			if err != nil {
				return n, err
			}
			if err := appendField(&n, f); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func appendField(n *xmlNode, f *Field) error {
	for _, v := range f.Values() {
		if vm, ok := v.(Model); ok {
			child, err := toNode(f.Name(), vm)
			if err != nil {
				return err
			}
			n.Children = append(n.Children, child)
			continue
		}
		if isEmptyValue(v) {
			continue
		}
		if f.HasMultipleValues() {
			n.Children = append(n.Children, xmlNode{XMLName: xml.Name{Local: f.Name()}, Text: formatXMLValue(v)})
			continue
		}
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: f.Name()}, Value: formatXMLValue(v)})
	}
	return nil
}

func formatXMLValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func parseXML(data []byte) (xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return root, fmt.Errorf("%w: malformed xml: %v", ErrInvalidArgument, err)
	}
	if root.XMLName.Local != XMLRoot {
		return root, fmt.Errorf("%w: root element must be %s, got %s", ErrInvalidArgument, XMLRoot, root.XMLName.Local)
	}
	if len(root.Children) != 1 {
		return root, fmt.Errorf("%w: %s must wrap exactly one model", ErrInvalidArgument, XMLRoot)
	}
	return root.Children[0], nil
}

// UnmarshalXML applies serialized field values to m. Attributes named in skip are ignored.
func UnmarshalXML(data []byte, m Model, skip ...string) error {
	node, err := parseXML(data)
	if err != nil {
		return err
	}
	if node.XMLName.Local != m.Class() {
		return fmt.Errorf("%w: cannot read %s into %s", ErrInvalidArgument, node.XMLName.Local, m.Class())
	}
	return applyNode(m, node, skip)
}

// FromXML creates a new entity from serialized XML. Attributes listed in attrs are passed to the
// schema's Init hook as construction attributes instead of being set as field values.
func (r *Registry) FromXML(data []byte, attrs ...string) (*Entity, error) {
	node, err := parseXML(data)
	if err != nil {
		return nil, err
	}

	var opts []EntityOption
	for _, a := range node.Attrs {
		for _, name := range attrs {
			if a.Name.Local == name {
				opts = append(opts, WithAttr(name, a.Value))
			}
		}
	}
	e, err := r.New(node.XMLName.Local, opts...)
	if err != nil {
		return nil, err
	}
	if err := applyNode(e, node, attrs); err != nil {
		return nil, err
	}
	return e, nil
}

func applyNode(m Model, n xmlNode, skip []string) error {
	for _, a := range n.Attrs {
		if slices.Contains(skip, a.Name.Local) {
			continue
		}
		f, err := m.Field(a.Name.Local)
		if err != nil {
			return err
		}
		if f.HasMultipleValues() {
			if _, err := f.AddValue(a.Value); err != nil {
				return err
			}
			continue
		}
		if err := m.Set(a.Name.Local, a.Value); err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		name := child.XMLName.Local
		f, err := m.Field(name)
		if err != nil {
			return err
		}
		if f.ValueModelClass() == "" {
			if f.HasMultipleValues() {
				_, err = m.Add(name, child.Text)
			} else {
				err = m.Set(name, child.Text)
			}
			if err != nil {
				return err
			}
			continue
		}

		v, err := m.Add(name, nil)
		if err != nil {
			return err
		}
		vm, ok := v.(Model)
		if !ok {
			return fmt.Errorf("%w: %s did not create a model", ErrModel, name)
		}
		if err := applyNode(vm, child, nil); err != nil {
			return err
		}
	}
	return nil
}
