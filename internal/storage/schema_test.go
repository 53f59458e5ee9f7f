package storage

// Test Plan for SQLite Schema:
// - CreateSchema creates every data table plus index_metadata
// - Bootstrap metadata records the schema version
// - GetSchemaVersion returns "0" for a database without schema
// - Deleting a decl cascades to its fields, bases, closure rows and template parameters
// - Deleting a func cascades to its params and function template parameters
// - Deleting a type sets dependent references to NULL
// - Unnamed template parameters never collide on the uniqueness key
// - AUTOINCREMENT ids are not reused after a delete

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	t.Parallel()
	db := NewTestDBMinimal(t)

	require.NoError(t, CreateSchema(db))

	for _, table := range append(Tables, "index_metadata") {
		assert.True(t, tableExists(t, db, table), "table %s should exist", table)
	}

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestGetSchemaVersion_Empty(t *testing.T) {
	t.Parallel()
	db := NewTestDBMinimal(t)

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, "0", version)
}

func TestSchema_DeclCascade(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	mustExec(t, db, "INSERT INTO decl (id, name, type) VALUES (1, 'A', 'class'), (2, 'B', 'class')")
	mustExec(t, db, "INSERT INTO decl_base (decl_id, base_id, position, access) VALUES (2, 1, 0, 'public')")
	mustExec(t, db, "INSERT INTO decl_tree (decl_id, ancestor_id, level) VALUES (2, 1, 1)")
	mustExec(t, db, "INSERT INTO decl_field (decl_id, name, access) VALUES (1, 'x', 'private')")
	mustExec(t, db, `INSERT INTO template_parameter (template_id, template_type, name, kind, "index") VALUES (1, 'class', 'T', 'type', 0)`)
	mustExec(t, db, `INSERT INTO template_parameter (template_id, template_type, name, kind, "index") VALUES (1, 'function', 'U', 'type', 0)`)

	mustExec(t, db, "DELETE FROM decl WHERE id = 1")

	assert.Equal(t, 0, countRows(t, db, "decl_base"))
	assert.Equal(t, 0, countRows(t, db, "decl_tree"))
	assert.Equal(t, 0, countRows(t, db, "decl_field"))
	// Only the class owner's parameters go; id 1 as a function owner stays.
	assert.Equal(t, 1, countRows(t, db, "template_parameter"))
}

func TestSchema_FuncCascade(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	mustExec(t, db, "INSERT INTO func (id, signature) VALUES (1, 'void f(int)')")
	mustExec(t, db, "INSERT INTO func_param (func_id, position) VALUES (1, 0)")
	mustExec(t, db, `INSERT INTO template_parameter (template_id, template_type, name, kind, "index") VALUES (1, 'function', 'T', 'type', 0)`)

	mustExec(t, db, "DELETE FROM func WHERE id = 1")

	assert.Equal(t, 0, countRows(t, db, "func_param"))
	assert.Equal(t, 0, countRows(t, db, "template_parameter"))
}

func TestSchema_TypeSetNull(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	mustExec(t, db, "INSERT INTO type (id, name) VALUES (1, 'int')")
	mustExec(t, db, "INSERT INTO func (id, signature, return_type_id) VALUES (1, 'int f()', 1)")

	mustExec(t, db, "DELETE FROM type WHERE id = 1")

	var ret sql.NullInt64
	require.NoError(t, db.QueryRow("SELECT return_type_id FROM func WHERE id = 1").Scan(&ret))
	assert.False(t, ret.Valid)
}

func TestSchema_UnnamedTemplateParams(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	mustExec(t, db, `INSERT INTO template_parameter (template_id, template_type, name, kind, "index") VALUES (1, 'class', NULL, 'type', 0)`)
	mustExec(t, db, `INSERT INTO template_parameter (template_id, template_type, name, kind, "index") VALUES (1, 'class', NULL, 'type', 1)`)

	assert.Equal(t, 2, countRows(t, db, "template_parameter"))
}

func TestSchema_IdsNotReused(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	mustExec(t, db, "INSERT INTO file (path) VALUES ('a.h')")
	mustExec(t, db, "DELETE FROM file")
	res, err := db.Exec("INSERT INTO file (path) VALUES ('b.h')")
	require.NoError(t, err)

	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n))
	return n
}
