package gateway

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/shared"
)

// validIdentifierRe validates table and column identifiers (alphanumerics, underscores, dots for alias.column)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// IsValidIdentifier reports whether s can be used as a table or column name.
func IsValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// execQuerier is satisfied by both [sql.DB] and [sql.Tx].
type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Adapter wraps a [sql.DB] for one SQL dialect.
//
// An adapter returned by [NewAdapter] runs every statement on the connection pool. Units of work get
// their own adapter from [Adapter.InTransaction], bound to one database transaction, so goroutines
// sharing the root adapter never see each other's transactions.
type Adapter struct {
	db      *sql.DB
	dialect string
	format  sq.PlaceholderFormat
	logger  *log.Logger
	columns *sync.Map

	uow *unitOfWork
}

// NewAdapter creates an Adapter for the given dialect. A nil logger discards output.
func NewAdapter(db *sql.DB, dialect string, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	var format sq.PlaceholderFormat = sq.Question
	if dialect == shared.DriverPostgres {
		format = sq.Dollar
	}
	return &Adapter{db: db, dialect: dialect, format: format, logger: logger, columns: &sync.Map{}}
}

// DB returns the underlying [sql.DB].
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Dialect returns the dialect name, one of the shared.Driver* constants.
func (a *Adapter) Dialect() string {
	return a.dialect
}

// Logger returns the adapter's logger.
func (a *Adapter) Logger() *log.Logger {
	return a.logger
}

// unitOfWork is the state shared by an adapter bound to one database transaction.
type unitOfWork struct {
	mu         sync.Mutex
	tx         *sql.Tx
	savepoints int
	undo       []func()
	after      []func()
}

func (u *unitOfWork) current() *sql.Tx {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tx
}

func (u *unitOfWork) marks() (int, int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.undo), len(u.after)
}

// end detaches the transaction and hands back the pending hooks.
func (u *unitOfWork) end() (*sql.Tx, []func(), []func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	tx, undo, after := u.tx, u.undo, u.after
	u.tx, u.undo, u.after = nil, nil, nil
	return tx, undo, after
}

// unwind runs the rollback hooks registered since the marks and drops the commit hooks.
func (u *unitOfWork) unwind(undoMark, afterMark int) {
	u.mu.Lock()
	undo := u.undo[undoMark:]
	u.undo = u.undo[:undoMark]
	u.after = u.after[:afterMark]
	u.mu.Unlock()
	runReverse(undo)
}

func runReverse(hooks []func()) {
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// InTransaction runs fn inside a database transaction and commits when fn returns nil.
//
// fn receives an adapter bound to the transaction; every statement of the unit of work must go through
// it. Called on a bound adapter, InTransaction nests through a savepoint. A rollback of either kind
// runs the hooks registered with [Adapter.OnRollback] since it began, newest first. Once the
// transaction is over the bound adapter falls back to the connection pool.
func (a *Adapter) InTransaction(fn func(tx *Adapter) error) error {
	if a.InTx() {
		return a.savepoint(fn)
	}

	sqlTx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	bound := &Adapter{
		db:      a.db,
		dialect: a.dialect,
		format:  a.format,
		logger:  a.logger,
		columns: a.columns,
		uow:     &unitOfWork{tx: sqlTx},
	}

	done := false
	defer func() {
		if !done {
			bound.rollback()
		}
	}()

	if err := fn(bound); err != nil {
		done = true
		bound.rollback()
		return err
	}
	done = true
	return bound.commit()
}

func (a *Adapter) commit() error {
	tx, undo, after := a.uow.end()
	if err := tx.Commit(); err != nil {
		runReverse(undo)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, fn := range after {
		fn()
	}
	return nil
}

func (a *Adapter) rollback() {
	tx, undo, _ := a.uow.end()
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil {
		a.logger.Warn("rollback failed", "error", err)
	}
	runReverse(undo)
}

func (a *Adapter) savepoint(fn func(tx *Adapter) error) error {
	u := a.uow
	u.mu.Lock()
	u.savepoints++
	name := "sp_" + strconv.Itoa(u.savepoints)
	u.mu.Unlock()
	undoMark, afterMark := u.marks()

	if _, err := a.Exec("SAVEPOINT " + name); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := fn(a); err != nil {
		if _, rbErr := a.Exec("ROLLBACK TO SAVEPOINT " + name); rbErr != nil {
			a.logger.Warn("rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		u.unwind(undoMark, afterMark)
		return err
	}
	if _, err := a.Exec("RELEASE SAVEPOINT " + name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// InTx reports whether the adapter is bound to an open transaction.
func (a *Adapter) InTx() bool {
	return a.uow != nil && a.uow.current() != nil
}

// OnRollback registers fn to run when the enclosing transaction or savepoint rolls back, or when the
// commit fails. Outside a transaction it does nothing.
func (a *Adapter) OnRollback(fn func()) {
	if a.uow == nil {
		return
	}
	a.uow.mu.Lock()
	defer a.uow.mu.Unlock()
	if a.uow.tx != nil {
		a.uow.undo = append(a.uow.undo, fn)
	}
}

// AfterCommit registers fn to run once the transaction has committed. Outside a transaction fn runs
// at once.
func (a *Adapter) AfterCommit(fn func()) {
	if a.uow != nil {
		a.uow.mu.Lock()
		if a.uow.tx != nil {
			a.uow.after = append(a.uow.after, fn)
			a.uow.mu.Unlock()
			return
		}
		a.uow.mu.Unlock()
	}
	fn()
}

func (a *Adapter) conn() execQuerier {
	if a.uow != nil {
		if tx := a.uow.current(); tx != nil {
			return tx
		}
	}
	return a.db
}

// bind rewrites "?" placeholders into the dialect's bind variables. "??" stands for a literal "?".
func (a *Adapter) bind(query string) (string, error) {
	q, err := a.format.ReplacePlaceholders(query)
	if err != nil {
		return "", fmt.Errorf("failed to bind %q: %w", query, err)
	}
	return q, nil
}

// Exec runs a statement written with "?" placeholders.
func (a *Adapter) Exec(query string, args ...any) (sql.Result, error) {
	q, err := a.bind(query)
	if err != nil {
		return nil, err
	}
	return a.conn().Exec(q, args...)
}

// Query runs a query written with "?" placeholders.
func (a *Adapter) Query(query string, args ...any) (*sql.Rows, error) {
	q, err := a.bind(query)
	if err != nil {
		return nil, err
	}
	return a.conn().Query(q, args...)
}

// QueryRow runs a single-row query written with "?" placeholders.
func (a *Adapter) QueryRow(query string, args ...any) sq.RowScanner {
	q, err := a.bind(query)
	if err != nil {
		return errRow{err}
	}
	return a.conn().QueryRow(q, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// exec renders a squirrel statement and runs it.
func (a *Adapter) exec(stmt sq.Sqlizer) (sql.Result, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	return a.Exec(query, args...)
}

// Quote quotes an identifier for the dialect. Dotted identifiers are quoted per segment.
func (a *Adapter) Quote(ident string) string {
	q := `"`
	if a.dialect == shared.DriverMySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

// Table returns a gateway for the named table.
func (a *Adapter) Table(name string, opts ...TableOption) *Table {
	t := &Table{adapter: a, name: name, primary: "id"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchAll runs a select and returns every row as a column map.
func (a *Adapter) FetchAll(sel *Select) ([]map[string]any, error) {
	query, args, err := sel.SQL()
	if err != nil {
		return nil, err
	}

	rows, err := a.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel.from, err)
	}
	defer rows.Close()

	var result []map[string]any
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// FetchCol runs a select and returns the first column of every row.
func (a *Adapter) FetchCol(sel *Select) ([]any, error) {
	query, args, err := sel.SQL()
	if err != nil {
		return nil, err
	}

	rows, err := a.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel.from, err)
	}
	defer rows.Close()

	var result []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		result = append(result, normalize(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// FetchIDs runs a select and returns its first column as int64 ids.
func (a *Adapter) FetchIDs(sel *Select) ([]int64, error) {
	col, err := a.FetchCol(sel)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(col))
	for _, v := range col {
		id, ok := ToInt64(v)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not an id", ErrInvalidValue, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FetchOne runs a select and returns the first column of the first row, or nil when there is none.
func (a *Adapter) FetchOne(sel *Select) (any, error) {
	query, args, err := sel.SQL()
	if err != nil {
		return nil, err
	}

	var v any
	err = a.QueryRow(query, args...).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel.from, err)
	}
	return normalize(v), nil
}

// scanMap scans the current row into a column map.
func scanMap(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	m := make(map[string]any, len(cols))
	for i, c := range cols {
		m[c] = normalize(values[i])
	}
	return m, nil
}

// normalize converts driver byte slices to strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ToInt64 converts driver and model values to an int64 id.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	case []byte:
		id, err := strconv.ParseInt(string(n), 10, 64)
		return id, err == nil
	}
	return 0, false
}
