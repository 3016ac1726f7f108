package gateway

import (
	"fmt"
	"maps"
	"reflect"
	"sort"
)

// Row holds the column values of one record of a [Table].
//
// Writes through an adapter bound to a transaction are undone in memory when the transaction rolls
// back, so a failed save can be retried.
type Row struct {
	table    *Table
	data     map[string]any
	modified map[string]bool
	stored   bool
	deleted  bool
}

// Table returns the row's table.
func (r *Row) Table() *Table { return r.table }

// Bind makes the row write through a, typically an adapter bound to a transaction.
func (r *Row) Bind(a *Adapter) {
	r.table = r.table.Bind(a)
}

// Get returns a column value, nil when unset.
func (r *Row) Get(column string) any {
	return r.data[column]
}

// Has reports whether the column holds a value.
func (r *Row) Has(column string) bool {
	_, ok := r.data[column]
	return ok
}

// Set assigns a column value and marks it modified when it differs.
func (r *Row) Set(column string, value any) {
	if old, ok := r.data[column]; ok && reflect.DeepEqual(old, value) {
		return
	}
	r.data[column] = value
	r.modified[column] = true
}

// ID returns the primary key, or zero for an unsaved row.
func (r *Row) ID() int64 {
	id, _ := ToInt64(r.data[r.table.primary])
	return id
}

// IsNew reports whether the row has never been saved.
func (r *Row) IsNew() bool {
	return !r.stored && !r.deleted
}

// IsDeleted reports whether the row was deleted. A deleted row keeps its values but cannot be saved.
func (r *Row) IsDeleted() bool {
	return r.deleted
}

// IsModified reports whether any column changed since the row was loaded or saved.
func (r *Row) IsModified() bool {
	return len(r.modified) > 0
}

// Modified returns the changed column names in sorted order.
func (r *Row) Modified() []string {
	cols := make([]string, 0, len(r.modified))
	for c := range r.modified {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Data returns a copy of the column values.
func (r *Row) Data() map[string]any {
	cp := make(map[string]any, len(r.data))
	for k, v := range r.data {
		cp[k] = v
	}
	return cp
}

// Save inserts a new row or updates the modified columns of a stored one, returning the primary key.
// An unmodified stored row issues no statement.
func (r *Row) Save() (int64, error) {
	if r.deleted {
		return 0, fmt.Errorf("%w: %s #%d", ErrRowDeleted, r.table.name, r.ID())
	}
	if r.stored && !r.IsModified() {
		return r.ID(), nil
	}
	r.table.adapter.OnRollback(r.snapshot())

	values := make(map[string]any, len(r.modified))
	for c := range r.modified {
		if c == r.table.primary {
			continue
		}
		values[c] = r.data[c]
	}

	if !r.stored {
		if pk, ok := r.data[r.table.primary]; ok && pk != nil {
			values[r.table.primary] = pk
		}
		id, err := r.table.Insert(values)
		if err != nil {
			return 0, err
		}
		if _, ok := values[r.table.primary]; !ok {
			r.data[r.table.primary] = id
		}
		r.stored = true
		clear(r.modified)
		return r.ID(), nil
	}

	if len(values) > 0 {
		n, err := r.table.Update(values, r.table.primary+" = ?", r.ID())
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("%w: %s #%d", ErrRowNotFound, r.table.name, r.ID())
		}
	}
	clear(r.modified)
	return r.ID(), nil
}

// Delete removes the stored row. Deleting an unsaved or deleted row is a no-op.
func (r *Row) Delete() error {
	if !r.stored {
		return nil
	}
	r.table.adapter.OnRollback(r.snapshot())
	n, err := r.table.Delete(r.table.primary+" = ?", r.ID())
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s #%d", ErrRowNotFound, r.table.name, r.ID())
	}
	r.stored = false
	r.deleted = true
	return nil
}

// snapshot captures the row state and returns a function restoring it.
func (r *Row) snapshot() func() {
	data, modified := maps.Clone(r.data), maps.Clone(r.modified)
	stored, deleted := r.stored, r.deleted
	return func() {
		r.data, r.modified = data, modified
		r.stored, r.deleted = stored, deleted
	}
}
