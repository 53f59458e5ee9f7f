package storage

// Test Plan for Store:
// - Open creates the schema on first use and reopens an existing store
// - Open fails with ErrStoreLocked while another store holds the lock
// - Open with Remove starts from an empty file
// - Open fails with ErrSchema on a database with foreign tables and no metadata
// - Clear deletes every row, keeps the schema and resets identity counters
// - Rollback discards writes and purges the resolver cache
// - Reads inside a transaction see the transaction's own writes
// - StartRun/FinishRun record run metadata

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(Options{Path: path, Logger: NewTestLogger()})
	require.NoError(t, err)
	id, created, err := s.Resolver().Decl("ns::Foo")
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: path, Logger: NewTestLogger()})
	require.NoError(t, err)
	defer s.Close()

	again, created, err := s.Resolver().Decl("ns::Foo")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestOpen_Locked(t *testing.T) {
	t.Parallel()
	_, path := NewTestStoreFile(t)

	_, err := Open(Options{Path: path, Lock: true, Logger: NewTestLogger()})
	assert.ErrorIs(t, err, ErrStoreLocked)
}

func TestOpen_Remove(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(Options{Path: path, Logger: NewTestLogger()})
	require.NoError(t, err)
	_, _, err = s.Resolver().File("a.h")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: path, Remove: true, Logger: NewTestLogger()})
	require.NoError(t, err)
	defer s.Close()

	n, err := NewReader(s.DB()).Count(context.Background(), "file")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_ForeignDatabase(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "other.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE unrelated (x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(Options{Path: path, Logger: NewTestLogger()})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	r := s.Resolver()

	a, _, err := r.Decl("A")
	require.NoError(t, err)
	b, _, err := r.Decl("B")
	require.NoError(t, err)
	require.NoError(t, s.Hierarchy().AddBaseEdge(BaseEdge{Child: b, Parent: a, Access: "public"}))
	_, _, err = r.Type("int", -1)
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	counts, err := NewReader(s.DB()).Counts(context.Background())
	require.NoError(t, err)
	for _, c := range counts {
		assert.Zero(t, c.Rows, "table %s should be empty", c.Table)
	}

	id, created, err := r.Decl("A")
	require.NoError(t, err)
	assert.True(t, created, "cached id must not survive a clear")
	assert.Equal(t, int64(1), id, "identity counters restart after a clear")
}

func TestStore_Rollback(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	r := s.Resolver()

	require.NoError(t, s.Begin())
	id, created, err := r.Decl("ns::Foo")
	require.NoError(t, err)
	require.True(t, created)

	// Same transaction: the lookup sees the uncommitted row.
	found, ok, err := r.LookupDecl("ns::Foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, found)

	require.NoError(t, s.Rollback())

	_, ok, err = r.LookupDecl("ns::Foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Commit(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	require.NoError(t, s.Begin())
	assert.Error(t, s.Begin(), "nested transactions are not supported")
	_, _, err := s.Resolver().File("a.h")
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	n, err := NewReader(s.DB()).Count(context.Background(), "file")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_RunMetadata(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	runID, err := s.StartRun()
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun())

	meta, err := NewReader(s.DB()).Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runID, meta["run_id"])
	assert.Equal(t, SchemaVersion, meta["schema_version"])
	assert.NotEmpty(t, meta["started_at"])
	assert.NotEmpty(t, meta["finished_at"])

	got, err := s.Metadata("run_id")
	require.NoError(t, err)
	assert.Equal(t, runID, got)
}
