package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/gateway"
)

// Entity is a [Model] persisted in a table row.
//
// Internal fields map onto columns of the primary row. External fields live in other tables as
// dependent models or behind link models and may be loaded lazily. An Entity is not safe for
// concurrent use.
type Entity struct {
	*Abstract

	registry *Registry
	schema   *Schema
	table    *gateway.Table
	row      *gateway.Row
	attrs    map[string]any
	pending  map[string]bool
	linked   Model
	logger   *log.Logger

	constructed bool
}

var _ Persistent = (*Entity)(nil)

// ID returns the primary key, zero for new records.
func (e *Entity) ID() int64 { return e.row.ID() }

// IsNewRecord reports whether the entity has not been stored yet.
func (e *Entity) IsNewRecord() bool { return e.row.IsNew() }

// Registry returns the registry the entity was created by. While the entity is stored or deleted it
// is bound to the running transaction.
func (e *Entity) Registry() *Registry { return e.registry }

// Adapter returns the adapter the entity's statements currently run through. Hooks use it to take
// part in the running transaction.
func (e *Entity) Adapter() *gateway.Adapter { return e.table.Adapter() }

// IsDeleted reports whether the entity was deleted.
func (e *Entity) IsDeleted() bool { return e.row.IsDeleted() }

// Schema returns the entity's schema.
func (e *Entity) Schema() *Schema { return e.schema }

// Table returns the primary table gateway.
func (e *Entity) Table() *gateway.Table { return e.table }

// Row returns the primary row.
func (e *Entity) Row() *gateway.Row { return e.row }

// Logger returns the entity's logger.
func (e *Entity) Logger() *log.Logger { return e.logger }

// Attr returns a construction attribute passed with [WithAttr].
func (e *Entity) Attr(key string) (any, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// IsPending reports whether a lazy external field has not been loaded yet.
func (e *Entity) IsPending(name string) bool { return e.pending[name] }

// Column returns a raw column value of the primary row.
func (e *Entity) Column(column string) any { return e.row.Get(column) }

// SetColumn writes a column value. When a field maps onto the column the field is set instead.
func (e *Entity) SetColumn(column string, v any) error {
	if f, ok := e.field(FieldName(column)); ok {
		if _, external := e.schema.external(f.Name()); !external {
			return f.SetValue(v)
		}
	}
	e.row.Set(column, v)
	return nil
}

// AdoptRow replaces the primary row with a stored one, keeping the entity's field values.
// Every internal field is marked modified so the next store writes it to the adopted row.
func (e *Entity) AdoptRow(row *gateway.Row) {
	prev := e.row
	e.Adapter().OnRollback(func() { e.row = prev })
	e.row = row
	for _, f := range e.fields {
		if _, external := e.schema.external(f.Name()); !external {
			f.SetModified()
		}
	}
}

// Field returns the named field, loading it first when it is a pending lazy field.
// Link models resolve fields they do not declare on the linked model.
func (e *Entity) Field(name string) (*Field, error) {
	if f, ok := e.field(name); ok {
		if err := e.ensureLoaded(name); err != nil {
			return nil, err
		}
		return f, nil
	}
	if e.linked != nil {
		return e.linked.Field(name)
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Class(), name)
}

// Get returns the value of the named field.
func (e *Entity) Get(name string) (any, error) {
	f, err := e.Field(name)
	if err != nil {
		return nil, err
	}
	return f.Value(), nil
}

// Set replaces the value of the named field. Read-only fields ignore the call once the entity is built.
func (e *Entity) Set(name string, v any) error {
	if e.constructed && e.schema.isReadOnly(name) {
		return nil
	}
	f, err := e.Field(name)
	if err != nil {
		return err
	}
	return f.SetValue(v)
}

// Add appends a value to the named field and returns it. Plain models added to a link field are
// wrapped into link models.
func (e *Entity) Add(name string, v any) (any, error) {
	f, err := e.Field(name)
	if err != nil {
		return nil, err
	}
	return f.AddValue(v)
}

// IsModified reports whether any field, the primary row or the linked model changed.
func (e *Entity) IsModified() bool {
	if e.Abstract.IsModified() || e.row.IsModified() {
		return true
	}
	return e.linked != nil && e.linked.IsModified()
}

// ClearModified resets all dirty flags, including the linked model's.
func (e *Entity) ClearModified() {
	e.Abstract.ClearModified()
	if e.linked != nil {
		e.linked.ClearModified()
	}
}

// Validate loads pending fields and validates every field.
func (e *Entity) Validate() error {
	if err := e.LoadAll(); err != nil {
		return err
	}
	if err := e.Abstract.Validate(); err != nil {
		return err
	}
	if e.linked != nil {
		return e.linked.Validate()
	}
	return nil
}

// LoadAll loads every pending lazy field.
func (e *Entity) LoadAll() error {
	for _, ext := range e.schema.Externals {
		if err := e.ensureLoaded(ext.Name); err != nil {
			return err
		}
	}
	return nil
}

// ToArray returns the field values as a map, loading pending fields first. Link models merge the
// linked model's values with their own.
func (e *Entity) ToArray() (map[string]any, error) {
	if err := e.LoadAll(); err != nil {
		return nil, err
	}
	if e.schema.ToArray != nil {
		return e.schema.ToArray(e)
	}
	return e.BaseArray()
}

// BaseArray is the default [Entity.ToArray] conversion, for schemas that extend it.
func (e *Entity) BaseArray() (map[string]any, error) {
	own, err := e.Abstract.ToArray()
	if err != nil {
		return nil, err
	}
	if e.linked == nil {
		return own, nil
	}
	out, err := e.linked.ToArray()
	if err != nil {
		return nil, err
	}
	for k, v := range own {
		out[k] = v
	}
	return out, nil
}

// DisplayName returns "Class#id" unless the schema or the link display field says otherwise.
func (e *Entity) DisplayName() string {
	if e.schema.DisplayName != nil {
		return e.schema.DisplayName(e)
	}
	if e.schema.Link != nil && e.schema.Link.Display != "" {
		if v, err := e.Get(e.schema.Link.Display); err == nil && v != nil {
			return fmt.Sprint(v)
		}
	}
	return e.ResourceID()
}

// ResourceID returns "Class#id", or the class name for new records.
func (e *Entity) ResourceID() string {
	if e.IsNewRecord() {
		return e.Class()
	}
	return fmt.Sprintf("%s#%d", e.Class(), e.ID())
}

// LinkedModel returns the model a link entity points at.
func (e *Entity) LinkedModel() Model { return e.linked }

// SetModel sets the target of a link entity.
func (e *Entity) SetModel(m Model) error {
	if e.schema.Link == nil {
		return fmt.Errorf("%w: %s is not a link model", ErrModel, e.Class())
	}
	if m != nil && m.Class() != e.schema.Link.Model {
		return fmt.Errorf("%w: %s links %s, got %s", ErrInvalidArgument, e.Class(), e.schema.Link.Model, m.Class())
	}
	if m == e.linked {
		return nil
	}
	e.linked = m
	var id any
	if p, ok := m.(Persistent); ok && !p.IsNewRecord() {
		id = p.ID()
	}
	e.row.Set(e.schema.Link.Key, id)
	return nil
}

// Store writes the entity and its modified external fields in one transaction and returns the id.
// Unmodified stored entities are left alone, deleted ones are refused with [ErrDeleted]. When the
// transaction fails the entity and its value models keep the state they had before the call.
func (e *Entity) Store() (int64, error) {
	return e.storeIn(e.registry.adapter)
}

// persister is implemented by entities and the types embedding them.
type persister interface {
	storeIn(a *gateway.Adapter) (int64, error)
	deleteIn(a *gateway.Adapter) error
}

// StoreValue stores p in the entity's running transaction.
func (e *Entity) StoreValue(p Persistent) (int64, error) {
	if ps, ok := p.(persister); ok {
		return ps.storeIn(e.Adapter())
	}
	return p.Store()
}

// DeleteValue deletes p in the entity's running transaction.
func (e *Entity) DeleteValue(p Persistent) error {
	if ps, ok := p.(persister); ok {
		return ps.deleteIn(e.Adapter())
	}
	return p.Delete()
}

// bind points the entity's gateways at a and returns a function restoring the previous ones.
func (e *Entity) bind(a *gateway.Adapter) func() {
	registry, table := e.registry, e.table
	prev := table.Adapter()
	e.registry = registry.Bind(a)
	e.table = table.Bind(a)
	e.row.Bind(a)
	return func() {
		e.registry, e.table = registry, table
		e.row.Bind(prev)
	}
}

func (e *Entity) storeIn(a *gateway.Adapter) (int64, error) {
	if e.IsDeleted() {
		return 0, fmt.Errorf("failed to store %s: %w", e.ResourceID(), ErrDeleted)
	}
	if !e.IsNewRecord() && !e.IsModified() {
		return e.ID(), nil
	}

	isNew := e.IsNewRecord()
	err := a.InTransaction(func(tx *gateway.Adapter) error {
		defer e.bind(tx)()
		if err := e.storeLinked(); err != nil {
			return err
		}
		if e.schema.PreStore != nil {
			if err := e.schema.PreStore(e); err != nil {
				return err
			}
		}
		if err := e.storeInternal(isNew); err != nil {
			return err
		}
		if _, err := e.row.Save(); err != nil {
			return err
		}
		if err := e.storeExternals(); err != nil {
			return err
		}
		tx.AfterCommit(e.ClearModified)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", e.Class(), err)
	}

	if e.schema.PostStore != nil {
		if err := e.schema.PostStore(e); err != nil {
			return 0, fmt.Errorf("failed post-store of %s: %w", e.ResourceID(), err)
		}
	}
	e.logger.Debug("stored", "id", e.ID(), "new", isNew)
	return e.ID(), nil
}

func (e *Entity) storeLinked() error {
	if e.schema.Link == nil || e.linked == nil {
		return nil
	}
	p, ok := e.linked.(Persistent)
	if !ok {
		return nil
	}
	id, err := e.StoreValue(p)
	if err != nil {
		return err
	}
	e.row.Set(e.schema.Link.Key, id)
	return nil
}

func (e *Entity) storeInternal(isNew bool) error {
	var columns map[string]bool
	for _, f := range e.fields {
		if _, external := e.schema.external(f.Name()); external {
			continue
		}
		if !isNew && !f.IsModified() {
			continue
		}
		if columns == nil {
			cols, err := e.table.Columns()
			if err != nil {
				return err
			}
			columns = make(map[string]bool, len(cols))
			for _, c := range cols {
				columns[c] = true
			}
		}

		col := e.schema.column(f.Name())
		if !columns[col] {
			return fmt.Errorf("%w: %s.%s has no column %s", ErrModel, e.Class(), f.Name(), col)
		}
		v, err := e.encode(f)
		if err != nil {
			return err
		}
		e.row.Set(col, v)
	}
	return nil
}

func (e *Entity) encode(f *Field) (any, error) {
	if c, ok := e.schema.Codecs[f.Name()]; ok && c.Store != nil {
		return c.Store(e, f)
	}
	if f.HasMultipleValues() {
		return ListCodec(",").Store(e, f)
	}
	return f.Value(), nil
}

func (e *Entity) decode(f *Field, raw any) ([]any, error) {
	if c, ok := e.schema.Codecs[f.Name()]; ok && c.Fetch != nil {
		return c.Fetch(e, raw)
	}
	if f.HasMultipleValues() {
		return ListCodec(",").Fetch(e, raw)
	}
	if raw == nil {
		return nil, nil
	}
	return []any{raw}, nil
}

func (e *Entity) fetchInternal() error {
	for _, f := range e.fields {
		if _, external := e.schema.external(f.Name()); external {
			continue
		}
		col := e.schema.column(f.Name())
		if !e.row.Has(col) {
			continue
		}
		values, err := e.decode(f, e.row.Get(col))
		if err != nil {
			return fmt.Errorf("failed to fetch %s.%s: %w", e.Class(), f.Name(), err)
		}
		f.setLoaded(values)
	}
	return nil
}

func (e *Entity) fetchLinked() error {
	id, ok := gateway.ToInt64(e.row.Get(e.schema.Link.Key))
	if !ok {
		return nil
	}
	target, err := e.registry.Load(e.schema.Link.Model, id)
	if err != nil {
		return fmt.Errorf("failed to load link target of %s: %w", e.ResourceID(), err)
	}
	e.linked = target
	return nil
}

func (e *Entity) storeExternals() error {
	for _, ext := range e.schema.Externals {
		if ext.Transient {
			continue
		}
		f, ok := e.field(ext.Name)
		if !ok {
			continue
		}
		if ext.Save != nil {
			if err := ext.Save(e, f); err != nil {
				return fmt.Errorf("failed to store %s.%s: %w", e.Class(), ext.Name, err)
			}
			continue
		}
		if e.pending[ext.Name] || !f.IsModified() {
			continue
		}
		if err := e.StoreExternal(ext, f); err != nil {
			return err
		}
	}
	return nil
}

// StoreExternal writes the values of an external field: each value model gets the parent id, the
// option columns and a sort order, is stored, and rows of the field no longer referenced are deleted.
func (e *Entity) StoreExternal(ext External, f *Field) error {
	valueClass := ext.Model
	if ext.Through != "" {
		valueClass = ext.Through
	}
	vs, err := e.registry.Schema(valueClass)
	if err != nil {
		return err
	}
	if vs.Parent == "" {
		return fmt.Errorf("%w: %s has no parent column for %s.%s", ErrModel, valueClass, e.Class(), ext.Name)
	}

	keep := make([]any, 0, f.Len())
	for i, v := range f.Values() {
		p, ok := v.(Persistent)
		if !ok {
			return fmt.Errorf("%w: %s.%s holds %T", ErrInvalidArgument, e.Class(), ext.Name, v)
		}
		if ve, ok := p.(*Entity); ok {
			if err := ve.bindToParent(vs.Parent, e.ID(), ext.Options, i+1); err != nil {
				return err
			}
		}
		id, err := e.StoreValue(p)
		if err != nil {
			return err
		}
		keep = append(keep, id)
	}

	table := e.registry.table(vs, nil)
	where, args := optionWhere(vs.Parent, e.ID(), ext.Options)
	sel := table.Select().Where(where, args...).WhereNotIn(table.Primary(), keep...)
	stale, err := table.FetchAll(sel)
	if err != nil {
		return fmt.Errorf("failed to find stale %s: %w", valueClass, err)
	}
	for _, row := range stale {
		if err := e.deleteValueRow(vs, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) bindToParent(parent string, id int64, options map[string]any, position int) error {
	if err := e.SetColumn(parent, id); err != nil {
		return err
	}
	for _, col := range sortedKeys(options) {
		if err := e.SetColumn(col, options[col]); err != nil {
			return err
		}
	}
	if f, ok := e.field("SortOrder"); ok && f.IsEmpty() {
		return f.SetValue(position)
	}
	return nil
}

// Delete removes the entity. Dependent models are deleted with it, link rows are removed without
// touching the models they point at. A deleted entity cannot be stored again.
func (e *Entity) Delete() error {
	return e.deleteIn(e.registry.adapter)
}

func (e *Entity) deleteIn(a *gateway.Adapter) error {
	if e.IsNewRecord() || e.IsDeleted() {
		return nil
	}
	id := e.ID()
	err := a.InTransaction(func(tx *gateway.Adapter) error {
		defer e.bind(tx)()
		if e.schema.PreDelete != nil {
			if err := e.schema.PreDelete(e); err != nil {
				return err
			}
		}
		for _, ext := range e.schema.Externals {
			if ext.Transient || ext.Load != nil {
				continue
			}
			if err := e.deleteExternal(ext); err != nil {
				return err
			}
		}
		return e.row.Delete()
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s#%d: %w", e.Class(), id, err)
	}
	e.logger.Debug("deleted", "id", id)
	return nil
}

func (e *Entity) deleteExternal(ext External) error {
	if ext.Through != "" {
		ls, err := e.registry.Schema(ext.Through)
		if err != nil {
			return err
		}
		where, args := optionWhere(ls.Parent, e.ID(), ext.Options)
		_, err = e.registry.table(ls, nil).Delete(where, args...)
		return err
	}

	vs, err := e.registry.Schema(ext.Model)
	if err != nil {
		return err
	}
	if vs.Parent == "" {
		return nil
	}
	table := e.registry.table(vs, nil)
	where, args := optionWhere(vs.Parent, e.ID(), ext.Options)
	rows, err := table.FetchAll(table.Select().Where(where, args...))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := e.deleteValueRow(vs, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) deleteValueRow(vs *Schema, row *gateway.Row) error {
	if vs.Link != nil || len(vs.Externals) == 0 {
		return row.Delete()
	}
	dep, err := e.registry.FromRow(vs.Class, row)
	if err != nil {
		return err
	}
	return e.DeleteValue(dep)
}

func (e *Entity) ensureLoaded(name string) error {
	if !e.pending[name] {
		return nil
	}
	delete(e.pending, name)
	ext, _ := e.schema.external(name)
	return e.loadExternal(ext)
}

// LoadExternal reloads an external field from the database, discarding unsaved values.
func (e *Entity) LoadExternal(name string) error {
	ext, ok := e.schema.external(name)
	if !ok || !e.HasField(name) {
		return fmt.Errorf("%w: %s.%s is not external", ErrUnknownField, e.Class(), name)
	}
	delete(e.pending, name)
	return e.loadExternal(ext)
}

func (e *Entity) loadExternal(ext External) error {
	f, _ := e.field(ext.Name)
	if e.IsNewRecord() && ext.Load == nil {
		return nil
	}

	values, err := e.fetchExternal(ext)
	if err != nil {
		return fmt.Errorf("failed to load %s.%s: %w", e.Class(), ext.Name, err)
	}
	f.setLoaded(values)
	f.ClearModified()
	e.logger.Debug("loaded external", "field", ext.Name, "id", e.ID(), "count", len(values))
	return nil
}

func (e *Entity) fetchExternal(ext External) ([]any, error) {
	if ext.Load != nil {
		return ext.Load(e)
	}

	valueClass := ext.Model
	if ext.Through != "" {
		valueClass = ext.Through
	}
	vs, err := e.registry.Schema(valueClass)
	if err != nil {
		return nil, err
	}
	if vs.Parent == "" {
		return nil, fmt.Errorf("%w: %s has no parent column", ErrModel, valueClass)
	}

	table := e.registry.table(vs, nil)
	where, args := optionWhere(vs.Parent, e.ID(), ext.Options)
	sel := table.Select().Where(where, args...)
	if len(ext.Sort) > 0 {
		sel.OrderBy(ext.Sort...)
	}
	sel.OrderBy(table.Primary() + " ASC")

	rows, err := table.FetchAll(sel)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := e.registry.FromRow(valueClass, row)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				e.logger.Warn("skipping dangling link", "field", ext.Name, "row", row.ID())
				continue
			}
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// optionWhere builds "parent = ? AND col = ?..." with nil options matching NULL.
func optionWhere(parent string, id int64, options map[string]any) (string, []any) {
	conds := []string{parent + " = ?"}
	args := []any{id}
	for _, col := range sortedKeys(options) {
		if options[col] == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, col+" = ?")
		args = append(args, options[col])
	}
	return strings.Join(conds, " AND "), args
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
