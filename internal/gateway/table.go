package gateway

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/raminkhorsandi/framework/internal/shared"
)

// Table is a gateway to a single table.
type Table struct {
	adapter    *Adapter
	name       string
	primary    string
	scope      []scopeValue
	softDelete string
}

type scopeValue struct {
	column string
	value  any
}

// TableOption configures a [Table].
type TableOption func(*Table)

// WithPrimary sets the primary key column. The default is "id".
func WithPrimary(column string) TableOption {
	return func(t *Table) { t.primary = column }
}

// WithScope restricts every read to rows where column equals value and sets it on every insert.
func WithScope(column string, value any) TableOption {
	return func(t *Table) { t.scope = append(t.scope, scopeValue{column, value}) }
}

// WithSoftDelete hides rows whose column is set and turns deletes into updates of that column.
func WithSoftDelete(column string) TableOption {
	return func(t *Table) { t.softDelete = column }
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Primary returns the primary key column.
func (t *Table) Primary() string { return t.primary }

// Adapter returns the adapter the table was created from.
func (t *Table) Adapter() *Adapter { return t.adapter }

// Bind returns a copy of the table that runs its statements through a, typically an adapter bound to
// a transaction.
func (t *Table) Bind(a *Adapter) *Table {
	if t.adapter == a {
		return t
	}
	cp := *t
	cp.adapter = a
	return &cp
}

// ScopeValue returns the fixed value of a scoped column.
func (t *Table) ScopeValue(column string) (any, bool) {
	for _, s := range t.scope {
		if s.column == column {
			return s.value, true
		}
	}
	return nil, false
}

// Select starts a select on the table with its scope applied.
func (t *Table) Select() *Select {
	sel := NewSelect(t.name)
	t.applyScope(sel)
	return sel
}

func (t *Table) applyScope(sel *Select) {
	for _, s := range t.scope {
		sel.Where(s.column+" = ?", s.value)
	}
	if t.softDelete != "" {
		sel.Where(t.softDelete + " IS NULL")
	}
}

// Columns returns the table's column names in declaration order.
func (t *Table) Columns() ([]string, error) {
	if cached, ok := t.adapter.columns.Load(t.name); ok {
		return cached.([]string), nil
	}
	if !IsValidIdentifier(t.name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, t.name)
	}

	rows, err := t.adapter.Query("SELECT * FROM " + t.name + " WHERE 1 = 0")
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", t.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", t.name, err)
	}
	t.adapter.columns.Store(t.name, cols)
	return cols, nil
}

// CreateRow returns a new, unsaved row with the scope columns filled in.
func (t *Table) CreateRow() *Row {
	r := &Row{table: t, data: make(map[string]any), modified: make(map[string]bool)}
	for _, s := range t.scope {
		r.Set(s.column, s.value)
	}
	return r
}

// Find loads a row by primary key.
func (t *Table) Find(id any) (*Row, error) {
	row, err := t.FetchRow(t.Select().Where(t.primary+" = ?", id))
	if err != nil {
		if err == ErrRowNotFound {
			return nil, fmt.Errorf("%w: %s #%v", ErrRowNotFound, t.name, id)
		}
		return nil, err
	}
	return row, nil
}

// FindMany loads the rows with the given primary keys, ordered by primary key.
func (t *Table) FindMany(ids ...any) ([]*Row, error) {
	return t.FetchAll(t.Select().WhereIn(t.primary, ids...).OrderBy(t.primary + " ASC"))
}

// FetchAll runs a select and wraps every result as a stored row.
func (t *Table) FetchAll(sel *Select) ([]*Row, error) {
	maps, err := t.adapter.FetchAll(sel)
	if err != nil {
		return nil, err
	}
	rows := make([]*Row, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, t.wrap(m))
	}
	return rows, nil
}

// FetchRow runs a select and returns the first row or [ErrRowNotFound].
func (t *Table) FetchRow(sel *Select) (*Row, error) {
	rows, err := t.FetchAll(sel.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrRowNotFound
	}
	return rows[0], nil
}

// Wrap turns column values fetched elsewhere into a stored row of this table.
func (t *Table) Wrap(data map[string]any) *Row {
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = normalize(v)
	}
	return t.wrap(cp)
}

func (t *Table) wrap(data map[string]any) *Row {
	return &Row{table: t, data: data, modified: make(map[string]bool), stored: true}
}

// Insert writes a new row and returns its generated primary key.
func (t *Table) Insert(values map[string]any) (int64, error) {
	values = t.withScope(values)
	cols, args, err := sortedColumns(values)
	if err != nil {
		return 0, err
	}

	var stmt sq.Sqlizer
	switch {
	case len(cols) > 0:
		stmt = sq.Insert(t.name).Columns(cols...).Values(args...)
	case t.adapter.dialect == shared.DriverMySQL:
		stmt = sq.Expr("INSERT INTO " + t.name + " () VALUES ()")
	default:
		stmt = sq.Expr("INSERT INTO " + t.name + " DEFAULT VALUES")
	}

	if t.adapter.dialect == shared.DriverPostgres {
		query, args, err := sq.ConcatExpr(stmt, " RETURNING "+t.primary).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", t.name, err)
		}
		var id int64
		if err := t.adapter.QueryRow(query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", t.name, err)
		}
		return id, nil
	}

	res, err := t.adapter.exec(stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read generated id for %s: %w", t.name, err)
	}
	return id, nil
}

// Update writes values to every row matching where and returns the number of affected rows.
func (t *Table) Update(values map[string]any, where string, args ...any) (int64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyUpdate
	}
	if _, _, err := sortedColumns(values); err != nil {
		return 0, err
	}

	stmt := sq.Update(t.name).SetMap(values)
	if cond, condArgs := t.scopedWhere(where, args); cond != "" {
		stmt = stmt.Where(cond, condArgs...)
	}

	res, err := t.adapter.exec(stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", t.name, err)
	}
	return affected(res)
}

// Delete removes every row matching where and returns the number of affected rows.
// Soft deleted tables stamp the deletion column instead.
func (t *Table) Delete(where string, args ...any) (int64, error) {
	if t.softDelete != "" {
		cond := t.softDelete + " IS NULL"
		if where != "" {
			cond = "(" + where + ") AND " + cond
		}
		return t.Update(map[string]any{t.softDelete: time.Now().UTC().Format(time.RFC3339)}, cond, args...)
	}

	stmt := sq.Delete(t.name)
	if cond, condArgs := t.scopedWhere(where, args); cond != "" {
		stmt = stmt.Where(cond, condArgs...)
	}

	res, err := t.adapter.exec(stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	return affected(res)
}

// NextPosition returns one more than the largest value of column among rows matching where.
// An empty set starts at 1.
func (t *Table) NextPosition(column, where string, args ...any) (int, error) {
	if !IsValidIdentifier(column) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, column)
	}

	sel := NewSelect(t.name).Columns("COALESCE(MAX(" + column + "), 0)")
	for _, s := range t.scope {
		sel.Where(s.column+" = ?", s.value)
	}
	if where != "" {
		sel.Where(where, args...)
	}

	v, err := t.adapter.FetchOne(sel)
	if err != nil {
		return 0, fmt.Errorf("failed to read next %s: %w", column, err)
	}
	n, _ := ToInt64(v)
	return int(n) + 1, nil
}

func (t *Table) withScope(values map[string]any) map[string]any {
	if len(t.scope) == 0 {
		return values
	}
	merged := make(map[string]any, len(values)+len(t.scope))
	for k, v := range values {
		merged[k] = v
	}
	for _, s := range t.scope {
		merged[s.column] = s.value
	}
	return merged
}

func (t *Table) scopedWhere(where string, args []any) (string, []any) {
	conds := make([]string, 0, len(t.scope)+1)
	all := make([]any, 0, len(t.scope)+len(args))
	for _, s := range t.scope {
		conds = append(conds, s.column+" = ?")
		all = append(all, s.value)
	}
	if where != "" {
		conds = append(conds, "("+where+")")
		all = append(all, args...)
	}
	return strings.Join(conds, " AND "), all
}

func sortedColumns(values map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if !IsValidIdentifier(c) {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return cols, args, nil
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
