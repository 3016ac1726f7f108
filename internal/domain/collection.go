package domain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
)

// OrganisationalUnitsRole is the collection role holding publishers and grantors.
const OrganisationalUnitsRole int64 = 1

// Collection is a node of a collection tree. Every tree belongs to a collection role.
type Collection struct {
	*model.Entity
	lib *Library
}

// OrganisationalUnit is a collection of the organisational units role.
type OrganisationalUnit struct {
	*Collection
}

// RoleID returns the collection role.
func (c *Collection) RoleID() int64 {
	id, _ := gateway.ToInt64(c.Column("role_id"))
	return id
}

// ParentID returns the parent collection, zero for root collections.
func (c *Collection) ParentID() int64 {
	id, _ := gateway.ToInt64(c.Column("parent_id"))
	return id
}

// Name returns the collection name.
func (c *Collection) Name() string {
	v, _ := c.Get("Name")
	return stringValue(v)
}

// Children returns the direct subcollections ordered by position.
func (c *Collection) Children() ([]*Collection, error) {
	return c.wrapped("SubCollection")
}

// Parents returns the ancestors from the root down to the direct parent.
func (c *Collection) Parents() ([]*Collection, error) {
	return c.wrapped("ParentCollection")
}

func (c *Collection) wrapped(field string) ([]*Collection, error) {
	f, err := c.Field(field)
	if err != nil {
		return nil, err
	}
	out := make([]*Collection, 0, f.Len())
	for _, v := range f.Values() {
		if e, ok := v.(*model.Entity); ok {
			out = append(out, c.lib.wrapCollection(e))
		}
	}
	return out, nil
}

// Entries returns the documents filed in the collection.
func (c *Collection) Entries() ([]*Document, error) {
	if c.IsNewRecord() {
		return nil, nil
	}
	ids, err := c.lib.adapter.FetchIDs(gateway.NewSelect("link_documents_collections").
		Columns("document_id").
		Where("collection_id = ? AND role IS NULL", c.ID()).
		OrderBy("document_id ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entries of %s: %w", c.ResourceID(), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.lib.GetAll(ids...)
}

// AddEntry files a stored document in the collection. Filing a document twice is a no-op.
func (c *Collection) AddEntry(doc model.Persistent) error {
	if c.IsNewRecord() || doc.IsNewRecord() {
		return fmt.Errorf("%w: entries link stored collections and documents", model.ErrInvalidArgument)
	}
	if doc.Class() != ClassDocument {
		return fmt.Errorf("%w: cannot file %s in a collection", model.ErrInvalidArgument, doc.Class())
	}
	table, err := c.lib.registry.Table(ClassDocumentCollection)
	if err != nil {
		return err
	}
	_, err = table.FetchRow(table.Select().
		Where("collection_id = ? AND document_id = ? AND role IS NULL", c.ID(), doc.ID()))
	if err == nil {
		return nil
	}
	if !errors.Is(err, gateway.ErrRowNotFound) {
		return err
	}
	_, err = table.Insert(map[string]any{
		"role_id":       c.RoleID(),
		"document_id":   doc.ID(),
		"collection_id": c.ID(),
	})
	return err
}

// NewCollection creates an unsaved collection in a role. It is placed below parent (0 for a root)
// right after leftSibling (0 for the first position).
func (l *Library) NewCollection(roleID, parent, leftSibling int64) (*Collection, error) {
	e, err := l.registry.New(ClassCollection,
		model.WithTable(gateway.WithScope("role_id", roleID)),
		model.WithAttr("ParentID", parent),
		model.WithAttr("LeftSibling", leftSibling))
	if err != nil {
		return nil, err
	}
	return l.wrapCollection(e), nil
}

// Collection loads a collection that is not deleted.
func (l *Library) Collection(id int64) (*Collection, error) {
	e, err := l.registry.Load(ClassCollection, id)
	if err != nil {
		return nil, err
	}
	return l.wrapCollection(e), nil
}

// RootCollections returns the top level collections of a role ordered by position.
func (l *Library) RootCollections(roleID int64) ([]*Collection, error) {
	return l.collections(l.registry, roleID, "parent_id IS NULL")
}

func (l *Library) collections(reg *model.Registry, roleID int64, where string, args ...any) ([]*Collection, error) {
	scope := gateway.WithScope("role_id", roleID)
	table, err := reg.Table(ClassCollection, scope)
	if err != nil {
		return nil, err
	}
	sel := table.Select().OrderBy("position ASC", "id ASC")
	if where != "" {
		sel.Where(where, args...)
	}
	rows, err := table.FetchAll(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collections: %w", err)
	}
	entities, err := reg.FromRows(ClassCollection, rows, model.WithTable(scope))
	if err != nil {
		return nil, err
	}
	out := make([]*Collection, len(entities))
	for i, e := range entities {
		out[i] = l.wrapCollection(e)
	}
	return out, nil
}

func (l *Library) wrapCollection(e *model.Entity) *Collection {
	return &Collection{Entity: e, lib: l}
}

// NewOrganisationalUnit creates an unsaved organisational unit.
func (l *Library) NewOrganisationalUnit(parent, leftSibling int64) (*OrganisationalUnit, error) {
	c, err := l.NewCollection(OrganisationalUnitsRole, parent, leftSibling)
	if err != nil {
		return nil, err
	}
	return &OrganisationalUnit{Collection: c}, nil
}

// OrganisationalUnits returns every organisational unit. The list is cached until a unit is stored.
func (l *Library) OrganisationalUnits() ([]*OrganisationalUnit, error) {
	return l.units.Remember(cacheAll, func() ([]*OrganisationalUnit, error) {
		collections, err := l.collections(l.registry, OrganisationalUnitsRole, "")
		if err != nil {
			return nil, err
		}
		units := make([]*OrganisationalUnit, len(collections))
		for i, c := range collections {
			units[i] = &OrganisationalUnit{Collection: c}
		}
		return units, nil
	})
}

// Publishers returns the organisational units flagged as publishers.
func (l *Library) Publishers() ([]*OrganisationalUnit, error) {
	return l.flaggedUnits("IsPublisher")
}

// Grantors returns the organisational units flagged as grantors.
func (l *Library) Grantors() ([]*OrganisationalUnit, error) {
	return l.flaggedUnits("IsGrantor")
}

func (l *Library) flaggedUnits(flag string) ([]*OrganisationalUnit, error) {
	all, err := l.OrganisationalUnits()
	if err != nil {
		return nil, err
	}
	var out []*OrganisationalUnit
	for _, u := range all {
		if v, err := u.Get(flag); err == nil && v != nil && model.ToBool(v) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *Library) collectionSchema() *model.Schema {
	return &model.Schema{
		Class:        ClassCollection,
		Table:        "collections",
		TableOptions: []gateway.TableOption{gateway.WithSoftDelete("deleted_at")},
		Init:         l.initCollection,
		Externals: []model.External{
			{Name: "SubCollection", Fetch: model.Lazy, Transient: true, Load: l.loadSubCollections},
			{Name: "ParentCollection", Fetch: model.Lazy, Transient: true, Load: l.loadParentCollections},
		},
		Codecs:      boolCodecs("Visible", "IsGrantor", "IsPublisher"),
		Hidden:      []string{"SubCollection", "ParentCollection"},
		PreStore:    l.placeCollection,
		PostStore:   l.flushUnits,
		PreDelete:   l.deleteSubCollections,
		DisplayName: displayField("Name"),
		ToArray:     collectionArray,
	}
}

func (l *Library) initCollection(e *model.Entity) error {
	if e.IsNewRecord() {
		if _, ok := gateway.ToInt64(e.Column("role_id")); !ok {
			return fmt.Errorf("%w: collection without role", model.ErrInvalidArgument)
		}
		_, hasParent := e.Attr("ParentID")
		_, hasSibling := e.Attr("LeftSibling")
		if !hasParent || !hasSibling {
			return ErrCollectionPlace
		}
	}

	columns, err := e.Table().Columns()
	if err != nil {
		return err
	}
	for _, col := range columns {
		if slices.Contains([]string{"id", "role_id", "deleted_at"}, col) {
			continue
		}
		e.AddField(model.NewField(model.FieldName(col)))
	}
	e.AddField(model.NewField("SubCollection").SetMultiplicity(model.Unbounded))
	e.AddField(model.NewField("ParentCollection").SetMultiplicity(model.Unbounded))

	if !e.IsNewRecord() {
		return nil
	}
	defaults := map[string]any{"Position": 0, "Visible": true, "IsGrantor": false, "IsPublisher": false}
	v, _ := e.Attr("ParentID")
	if parent, _ := gateway.ToInt64(v); parent != 0 {
		defaults["ParentId"] = parent
	}
	for name, value := range defaults {
		if err := e.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// placeCollection gives a new collection the position after its left sibling and moves the
// following siblings one position down.
func (l *Library) placeCollection(e *model.Entity) error {
	if !e.IsNewRecord() {
		return nil
	}
	role, _ := gateway.ToInt64(e.Column("role_id"))
	v, _ := e.Attr("ParentID")
	parent, _ := gateway.ToInt64(v)
	v, _ = e.Attr("LeftSibling")
	left, _ := gateway.ToInt64(v)

	position := int64(1)
	if left != 0 {
		row, err := e.Table().Find(left)
		if err != nil {
			return fmt.Errorf("%w: left sibling %d: %v", ErrCollectionPlace, left, err)
		}
		if p, _ := gateway.ToInt64(row.Get("parent_id")); p != parent {
			return fmt.Errorf("%w: %d is not a child of %d", ErrCollectionPlace, left, parent)
		}
		pos, _ := gateway.ToInt64(row.Get("position"))
		position = pos + 1
	}

	cond, args := "parent_id IS NULL", []any{role, position}
	if parent != 0 {
		cond, args = "parent_id = ?", []any{role, parent, position}
	}
	_, err := e.Adapter().Exec("UPDATE collections SET position = position + 1 WHERE role_id = ? AND "+
		cond+" AND position >= ? AND deleted_at IS NULL", args...)
	if err != nil {
		return fmt.Errorf("failed to shift collections: %w", err)
	}
	return e.Set("Position", position)
}

func (l *Library) loadSubCollections(e *model.Entity) ([]any, error) {
	if e.IsNewRecord() {
		return nil, nil
	}
	role, _ := gateway.ToInt64(e.Column("role_id"))
	children, err := l.collections(e.Registry(), role, "parent_id = ?", e.ID())
	if err != nil {
		return nil, err
	}
	out := make([]any, len(children))
	for i, c := range children {
		out[i] = c.Entity
	}
	return out, nil
}

func (l *Library) loadParentCollections(e *model.Entity) ([]any, error) {
	var parents []any
	seen := map[int64]bool{e.ID(): true}
	next, _ := gateway.ToInt64(e.Column("parent_id"))
	for next != 0 && !seen[next] {
		seen[next] = true
		p, err := e.Registry().Load(ClassCollection, next)
		if err != nil {
			return nil, err
		}
		parents = append(parents, p)
		next, _ = gateway.ToInt64(p.Column("parent_id"))
	}
	slices.Reverse(parents)
	return parents, nil
}

func (l *Library) deleteSubCollections(e *model.Entity) error {
	f, err := e.Field("SubCollection")
	if err != nil {
		return err
	}
	for _, v := range f.Values() {
		if child, ok := v.(model.Persistent); ok {
			if err := e.DeleteValue(child); err != nil {
				return err
			}
		}
	}
	return l.flushUnits(e)
}

func (l *Library) flushUnits(e *model.Entity) error {
	if role, _ := gateway.ToInt64(e.Column("role_id")); role == OrganisationalUnitsRole {
		l.units.Flush()
	}
	return nil
}

func collectionArray(e *model.Entity) (map[string]any, error) {
	subs, err := e.Field("SubCollection")
	if err != nil {
		return nil, err
	}
	children := make([]any, 0, subs.Len())
	for _, v := range subs.Values() {
		m, ok := v.(model.Model)
		if !ok {
			continue
		}
		a, err := m.ToArray()
		if err != nil {
			return nil, err
		}
		children = append(children, a)
	}
	name, _ := e.Get("Name")
	return map[string]any{
		"Id":            e.ID(),
		"Name":          name,
		"SubCollection": children,
	}, nil
}

func (l *Library) collectionRoleSchema() *model.Schema {
	return &model.Schema{
		Class: ClassCollectionRole,
		Table: "collections_roles",
		Init: func(e *model.Entity) error {
			e.AddField(model.NewField("Name").SetMandatory(true).AddValidator(model.NotEmpty()))
			addFields(e, "OaiName", "Position", "Visible")
			if !e.IsNewRecord() {
				return nil
			}
			if err := e.Set("Position", 0); err != nil {
				return err
			}
			return e.Set("Visible", true)
		},
		Codecs:      boolCodecs("Visible"),
		DisplayName: displayField("Name"),
	}
}
