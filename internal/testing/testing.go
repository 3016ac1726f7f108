// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/shared"
)

// SetupTestDB opens an in-memory database with all migrations applied. It is closed on cleanup.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SetupTestAdapter wraps [SetupTestDB] in a sqlite3 [gateway.Adapter] with a discarding logger.
func SetupTestAdapter(t *testing.T) *gateway.Adapter {
	t.Helper()
	return gateway.NewAdapter(SetupTestDB(t), shared.DriverSQLite, shared.DiscardLogger())
}

// CountRows returns the number of rows of table matching where.
func CountRows(t *testing.T, a *gateway.Adapter, table, where string, args ...any) int {
	t.Helper()
	sel := gateway.NewSelect(table).Columns("COUNT(*)")
	if where != "" {
		sel.Where(where, args...)
	}
	v, err := a.FetchOne(sel)
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	n, _ := gateway.ToInt64(v)
	return int(n)
}

// MockIndexer records the documents passed to it. It is safe for concurrent use.
type MockIndexer struct {
	mu      sync.Mutex
	Added   []int64
	Removed []int64
	Err     error
	Closed  bool
}

func (m *MockIndexer) AddDocument(doc model.Persistent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Added = append(m.Added, doc.ID())
	return nil
}

func (m *MockIndexer) RemoveDocumentFromEntryIndex(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Removed = append(m.Removed, id)
	return nil
}

func (m *MockIndexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// AddedIDs returns the indexed ids in ascending order.
func (m *MockIndexer) AddedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := slices.Clone(m.Added)
	slices.Sort(ids)
	return ids
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
