package storage

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// NewTestStore opens an in-memory store with the full schema and a quiet
// logger. The store is closed by t.Cleanup().
//
// This is the standard helper; use it for most tests.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    s := storage.NewTestStore(t)
//	    id, created, err := s.Resolver().Decl("ns::Foo")
//	    // No need to close - t.Cleanup() handles it
//	}
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	s, err := Open(Options{
		Path:              MemoryPath,
		ResolverCacheSize: 1024,
		Logger:            NewTestLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// NewTestStoreFile opens a file-backed store in t.TempDir(), with locking
// enabled. Use it for persistence and lock tests.
func NewTestStoreFile(t testing.TB) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(Options{
		Path:   path,
		Lock:   true,
		Logger: NewTestLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

// NewTestDB creates an in-memory database with foreign keys on and the
// full schema, without a Store around it.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db := NewTestDBMinimal(t)
	require.NoError(t, CreateSchema(db))
	return db
}

// NewTestDBMinimal creates an in-memory database with foreign keys on and
// NO schema. Use it to test schema creation itself.
func NewTestDBMinimal(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	// SQLite disables foreign keys by default for backward compatibility
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	return db
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
