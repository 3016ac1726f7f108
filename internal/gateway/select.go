package gateway

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Select builds a SELECT statement with "?" placeholders on top of a squirrel builder.
//
//	sel := gateway.NewSelect("documents d").
//		Columns("d.id").
//		Where("d.server_state = ?", "published").
//		OrderBy("d.id DESC")
//
// The adapter running the statement rebinds the placeholders for its dialect.
type Select struct {
	from    string
	columns []string
	b       sq.SelectBuilder
	limit   int
	offset  int
}

// NewSelect starts a select from a table, optionally followed by an alias ("documents d").
func NewSelect(from string) *Select {
	return &Select{from: from, b: sq.StatementBuilder.Select().From(from)}
}

// Columns sets the selected expressions. Without columns "*" is selected.
func (s *Select) Columns(cols ...string) *Select {
	s.columns = append(s.columns, cols...)
	return s
}

// Distinct adds DISTINCT to the select list.
func (s *Select) Distinct() *Select {
	s.b = s.b.Distinct()
	return s
}

// Join adds an inner join.
func (s *Select) Join(table, on string) *Select {
	s.b = s.b.Join(table + " ON " + on)
	return s
}

// LeftJoin adds a left outer join.
func (s *Select) LeftJoin(table, on string) *Select {
	s.b = s.b.LeftJoin(table + " ON " + on)
	return s
}

// Where adds a condition joined with AND. Conditions containing OR are parenthesized.
func (s *Select) Where(cond string, args ...any) *Select {
	s.b = s.b.Where("("+cond+")", args...)
	return s
}

// WhereIn adds "column IN (...)". An empty list matches nothing.
func (s *Select) WhereIn(column string, values ...any) *Select {
	s.b = s.b.Where(sq.Eq{column: values})
	return s
}

// WhereNotIn adds "column NOT IN (...)". An empty list matches everything.
func (s *Select) WhereNotIn(column string, values ...any) *Select {
	s.b = s.b.Where(sq.NotEq{column: values})
	return s
}

// GroupBy adds GROUP BY expressions.
func (s *Select) GroupBy(cols ...string) *Select {
	s.b = s.b.GroupBy(cols...)
	return s
}

// OrderBy adds ORDER BY expressions such as "sort_order ASC".
func (s *Select) OrderBy(exprs ...string) *Select {
	s.b = s.b.OrderBy(exprs...)
	return s
}

// Limit restricts the number of rows. Zero means no limit.
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Offset skips rows; only rendered together with Limit.
func (s *Select) Offset(n int) *Select {
	s.offset = n
	return s
}

// SQL renders the statement and its arguments.
func (s *Select) SQL() (string, []any, error) {
	table, _, _ := strings.Cut(s.from, " ")
	if !IsValidIdentifier(table) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}

	b := s.b
	if len(s.columns) == 0 {
		b = b.Columns("*")
	} else {
		b = b.Columns(s.columns...)
	}
	if s.limit > 0 {
		b = b.Limit(uint64(s.limit))
		if s.offset > 0 {
			b = b.Offset(uint64(s.offset))
		}
	}

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render select from %s: %w", table, err)
	}
	return query, args, nil
}

// Direction returns "DESC" when reverse is set, "ASC" otherwise.
func Direction(reverse bool) string {
	if reverse {
		return "DESC"
	}
	return "ASC"
}
