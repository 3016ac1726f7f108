package gateway

import (
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raminkhorsandi/framework/internal/shared"
)

func TestPlaceholders(t *testing.T) {
	tt := []struct {
		name    string
		dialect string
		in      string
		want    string
	}{
		{name: "sqlite untouched", dialect: shared.DriverSQLite, in: "a = ? AND b = ?", want: "a = ? AND b = ?"},
		{name: "mysql untouched", dialect: shared.DriverMySQL, in: "a = ?", want: "a = ?"},
		{name: "postgres numbered", dialect: shared.DriverPostgres, in: "a = ? AND b = ?", want: "a = $1 AND b = $2"},
		{name: "postgres escaped mark", dialect: shared.DriverPostgres, in: "a ?? 'k' AND b = ?", want: "a ? 'k' AND b = $1"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewAdapter(nil, tc.dialect, nil).bind(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "`documents`.`id`", NewAdapter(nil, shared.DriverMySQL, nil).Quote("documents.id"))
	assert.Equal(t, `"documents"`, NewAdapter(nil, shared.DriverPostgres, nil).Quote("documents"))
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, IsValidIdentifier("link_persons_documents"))
	assert.True(t, IsValidIdentifier("d.id"))
	assert.False(t, IsValidIdentifier(""))
	assert.False(t, IsValidIdentifier("1abc"))
	assert.False(t, IsValidIdentifier("id; --"))
}

func TestPostgresInsertUsesReturning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO persons (first_name,last_name) VALUES ($1,$2) RETURNING id")).
		WithArgs("Ludwig", "Wittgenstein").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	a := NewAdapter(db, shared.DriverPostgres, nil)
	id, err := a.Table("persons").Insert(map[string]any{"last_name": "Wittgenstein", "first_name": "Ludwig"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSelectUsesDollarPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM documents WHERE (server_state = $1) AND type IN ($2,$3) ORDER BY id ASC LIMIT 10")).
		WithArgs("published", "article", "book").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(5))

	a := NewAdapter(db, shared.DriverPostgres, nil)
	ids, err := a.FetchIDs(NewSelect("documents").Columns("id").
		Where("server_state = ?", "published").
		WhereIn("type", "article", "book").
		OrderBy("id ASC").
		Limit(10))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLInsertUsesLastInsertID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO persons (last_name) VALUES (?)")).
		WithArgs("Gandi").
		WillReturnResult(sqlmock.NewResult(7, 1))

	a := NewAdapter(db, shared.DriverMySQL, nil)
	id, err := a.Table("persons").Insert(map[string]any{"last_name": "Gandi"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactions(t *testing.T) {
	t.Run("statements run on the bound adapter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM persons WHERE (id = ?)")).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		a := NewAdapter(db, shared.DriverSQLite, nil)
		err = a.InTransaction(func(tx *Adapter) error {
			assert.True(t, tx.InTx())
			assert.False(t, a.InTx(), "the root adapter never holds a transaction")
			_, err := tx.Table("persons").Delete("id = ?", 1)
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested levels use savepoints", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_2")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT sp_2")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		a := NewAdapter(db, shared.DriverSQLite, nil)
		boom := errors.New("boom")
		err = a.InTransaction(func(tx *Adapter) error {
			require.NoError(t, tx.InTransaction(func(inner *Adapter) error {
				assert.Same(t, tx, inner)
				return nil
			}))
			assert.ErrorIs(t, tx.InTransaction(func(*Adapter) error { return boom }), boom)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		a := NewAdapter(db, shared.DriverSQLite, nil)
		boom := errors.New("boom")
		var bound *Adapter
		err = a.InTransaction(func(tx *Adapter) error {
			bound = tx
			return boom
		})
		assert.True(t, errors.Is(err, boom))
		assert.False(t, bound.InTx(), "a finished unit of work falls back to the pool")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback hooks run newest first", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT sp_1")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		var calls []string
		a := NewAdapter(db, shared.DriverSQLite, nil)
		err = a.InTransaction(func(tx *Adapter) error {
			tx.OnRollback(func() { calls = append(calls, "outer") })
			tx.AfterCommit(func() { calls = append(calls, "committed") })
			_ = tx.InTransaction(func(inner *Adapter) error {
				inner.OnRollback(func() { calls = append(calls, "inner") })
				return errors.New("inner fails")
			})
			assert.Equal(t, []string{"inner"}, calls, "a savepoint rollback undoes only its own work")
			return errors.New("outer fails")
		})
		require.Error(t, err)
		assert.Equal(t, []string{"inner", "outer"}, calls)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("after commit hooks wait for the commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		committed := false
		a := NewAdapter(db, shared.DriverSQLite, nil)
		err = a.InTransaction(func(tx *Adapter) error {
			tx.AfterCommit(func() { committed = true })
			tx.OnRollback(func() { t.Error("rollback hook must not run on commit") })
			assert.False(t, committed)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, committed)

		ran := false
		a.AfterCommit(func() { ran = true })
		assert.True(t, ran, "outside a transaction the hook runs at once")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed commit runs rollback hooks", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		undone := false
		a := NewAdapter(db, shared.DriverSQLite, nil)
		err = a.InTransaction(func(tx *Adapter) error {
			tx.OnRollback(func() { undone = true })
			return nil
		})
		require.Error(t, err)
		assert.True(t, undone)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestConcurrentUnitsOfWork runs two goroutines on one adapter. The unit of work that fails must not
// take the other one's committed insert with it.
func TestConcurrentUnitsOfWork(t *testing.T) {
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "units.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE events (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(50))")
	require.NoError(t, err)

	a := NewAdapter(db, shared.DriverSQLite, nil)
	events := a.Table("events")

	bStarted := make(chan struct{})
	aDone := make(chan struct{})
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errB = a.InTransaction(func(tx *Adapter) error {
			close(bStarted)
			<-aDone
			if _, err := events.Bind(tx).Insert(map[string]any{"name": "b"}); err != nil {
				return err
			}
			return errors.New("b fails")
		})
	}()

	go func() {
		defer wg.Done()
		defer close(aDone)
		<-bStarted
		errA = a.InTransaction(func(tx *Adapter) error {
			_, err := events.Bind(tx).Insert(map[string]any{"name": "a"})
			return err
		})
	}()

	wg.Wait()
	require.NoError(t, errA)
	require.Error(t, errB)

	names, err := a.FetchCol(NewSelect("events").Columns("name"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, names)
}

func TestToInt64(t *testing.T) {
	tt := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(3), 3, true},
		{7, 7, true},
		{"12", 12, true},
		{[]byte("5"), 5, true},
		{float64(9), 9, true},
		{"abc", 0, false},
		{nil, 0, false},
	}

	for _, tc := range tt {
		got, ok := ToInt64(tc.in)
		assert.Equal(t, tc.ok, ok, "ToInt64(%v)", tc.in)
		assert.Equal(t, tc.want, got, "ToInt64(%v)", tc.in)
	}
}
