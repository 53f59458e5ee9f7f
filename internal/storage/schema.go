package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is recorded in index_metadata when the schema is created.
const SchemaVersion = "1.0"

// ErrSchema means the schema could not be created or does not match.
var ErrSchema = errors.New("schema unavailable")

// Tables lists every data table in dependency order (parents first).
// Clearing walks it backwards.
var Tables = []string{
	"file",
	"decl",
	"type",
	"template_parameter",
	"template_argument",
	"decl_base",
	"decl_tree",
	"decl_field",
	"enum_field",
	"func",
	"func_param",
	"method_override",
	"var_decl",
	"var_ref",
	"fcall",
}

// CreateSchema creates all tables, indexes and triggers in one transaction
// and bootstraps index_metadata.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"file", createFileTable},
		{"decl", createDeclTable},
		{"type", createTypeTable},
		{"template_parameter", createTemplateParameterTable},
		{"template_argument", createTemplateArgumentTable},
		{"decl_base", createDeclBaseTable},
		{"decl_tree", createDeclTreeTable},
		{"decl_field", createDeclFieldTable},
		{"enum_field", createEnumFieldTable},
		{"func", createFuncTable},
		{"func_param", createFuncParamTable},
		{"method_override", createMethodOverrideTable},
		{"var_decl", createVarDeclTable},
		{"var_ref", createVarRefTable},
		{"fcall", createFCallTable},
		{"index_metadata", createIndexMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	// template_parameter has a polymorphic owner, so its cascade is a trigger.
	for i, trigger := range getAllTriggers() {
		if _, err := tx.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create trigger %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO index_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('run_id', '', ?),
			('started_at', '', ?),
			('finished_at', '', ?)
	`, SchemaVersion, now, now, now, now); err != nil {
		return fmt.Errorf("failed to bootstrap index_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns "0" for a database without index_metadata.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='index_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check index_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM index_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in index_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

func tableCount(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return n, nil
}

const createFileTable = `
CREATE TABLE file (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE
)
`

const createDeclTable = `
CREATE TABLE decl (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,                   -- qualified name
    type TEXT,                                   -- class, struct, union, enum, typedef, using; NULL while a stub
    file_id INTEGER REFERENCES file(id) ON DELETE SET NULL,
    start_line INTEGER,
    end_line INTEGER,
    start_column INTEGER,
    end_column INTEGER,
    brief_comment TEXT,
    comment TEXT,
    underlying_type TEXT,                        -- typedef/using target spelling
    is_struct INTEGER NOT NULL DEFAULT 0,
    is_abstract INTEGER NOT NULL DEFAULT 0,
    is_template INTEGER NOT NULL DEFAULT 0,
    is_scoped INTEGER NOT NULL DEFAULT 0         -- enum class
)
`

const createTypeTable = `
CREATE TABLE type (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,                          -- canonical spelling, cv-qualifiers dropped
    template_parameter_index INTEGER NOT NULL DEFAULT -1,
    indirection TEXT,                            -- outermost first, e.g. "*&"
    decl_name TEXT,
    decl_kind TEXT,
    spelling TEXT,                               -- first spelling observed
    UNIQUE(name, template_parameter_index)
)
`

const createTemplateParameterTable = `
CREATE TABLE template_parameter (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    template_id INTEGER NOT NULL,                -- decl.id or func.id, see template_type
    template_type TEXT NOT NULL,                 -- class or function
    name TEXT,                                   -- NULL for unnamed parameters
    kind TEXT NOT NULL,                          -- type, non-type, template
    type TEXT,                                   -- non-type parameter type
    value TEXT,                                  -- default argument
    is_variadic INTEGER NOT NULL DEFAULT 0,
    "index" INTEGER NOT NULL,
    UNIQUE(template_id, template_type, name)
)
`

const createTemplateArgumentTable = `
CREATE TABLE template_argument (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    template_id INTEGER NOT NULL REFERENCES type(id) ON DELETE CASCADE,
    type_id INTEGER REFERENCES type(id) ON DELETE SET NULL,
    kind TEXT NOT NULL,                          -- Type, Expression, Integral, ...
    value TEXT,
    "index" INTEGER NOT NULL,
    UNIQUE(template_id, "index")
)
`

const createDeclBaseTable = `
CREATE TABLE decl_base (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    decl_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    base_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    access TEXT NOT NULL,
    is_virtual INTEGER NOT NULL DEFAULT 0,
    UNIQUE(decl_id, base_id)
)
`

const createDeclTreeTable = `
CREATE TABLE decl_tree (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    decl_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    ancestor_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    level INTEGER NOT NULL,
    UNIQUE(decl_id, ancestor_id, level)
)
`

const createDeclFieldTable = `
CREATE TABLE decl_field (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    decl_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    type_id INTEGER REFERENCES type(id) ON DELETE SET NULL,
    name TEXT NOT NULL,
    access TEXT NOT NULL,
    file_id INTEGER REFERENCES file(id) ON DELETE SET NULL,
    start_line INTEGER,
    end_line INTEGER,
    brief_comment TEXT,
    comment TEXT
)
`

const createEnumFieldTable = `
CREATE TABLE enum_field (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    enum_id INTEGER NOT NULL REFERENCES decl(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    value INTEGER NOT NULL,
    file_id INTEGER REFERENCES file(id) ON DELETE SET NULL,
    start_line INTEGER,
    end_line INTEGER,
    brief_comment TEXT,
    comment TEXT
)
`

const createFuncTable = `
CREATE TABLE func (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT,                                   -- qualified name
    signature TEXT NOT NULL UNIQUE,              -- dedup key
    class_id INTEGER REFERENCES decl(id) ON DELETE CASCADE,
    return_type_id INTEGER REFERENCES type(id) ON DELETE SET NULL,
    access TEXT,
    file_id INTEGER REFERENCES file(id) ON DELETE SET NULL,
    start_line INTEGER,
    end_line INTEGER,
    brief_comment TEXT,
    comment TEXT,
    is_static INTEGER NOT NULL DEFAULT 0,
    is_inline INTEGER NOT NULL DEFAULT 0,
    is_virtual INTEGER NOT NULL DEFAULT 0,
    is_pure INTEGER NOT NULL DEFAULT 0,
    is_ctor INTEGER NOT NULL DEFAULT 0,
    is_overriding INTEGER NOT NULL DEFAULT 0,
    is_const INTEGER NOT NULL DEFAULT 0
)
`

const createFuncParamTable = `
CREATE TABLE func_param (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    func_id INTEGER NOT NULL REFERENCES func(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    type_id INTEGER REFERENCES type(id) ON DELETE SET NULL,
    name TEXT,
    default_value TEXT,
    UNIQUE(func_id, position)
)
`

const createMethodOverrideTable = `
CREATE TABLE method_override (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    method_id INTEGER NOT NULL REFERENCES func(id) ON DELETE CASCADE,
    overridden_method_id INTEGER NOT NULL REFERENCES func(id) ON DELETE CASCADE,
    UNIQUE(method_id, overridden_method_id)
)
`

const createVarDeclTable = `
CREATE TABLE var_decl (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT,
    type_id INTEGER REFERENCES type(id) ON DELETE SET NULL,
    func_id INTEGER REFERENCES func(id) ON DELETE SET NULL,  -- enclosing function
    file_id INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
    start_line INTEGER,
    start_column INTEGER,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    UNIQUE(file_id, end_line, end_column)
)
`

const createVarRefTable = `
CREATE TABLE var_ref (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    var_decl_id INTEGER NOT NULL REFERENCES var_decl(id) ON DELETE CASCADE,
    func_id INTEGER REFERENCES func(id) ON DELETE SET NULL,
    is_write INTEGER NOT NULL DEFAULT 0,
    file_id INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
    start_line INTEGER,
    start_column INTEGER,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    UNIQUE(file_id, end_line, end_column)
)
`

const createFCallTable = `
CREATE TABLE fcall (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    func_id INTEGER NOT NULL REFERENCES func(id) ON DELETE CASCADE,
    caller_id INTEGER REFERENCES func(id) ON DELETE SET NULL,
    file_id INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
    start_line INTEGER,
    start_column INTEGER,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    UNIQUE(file_id, end_line, end_column)
)
`

const createIndexMetadataTable = `
CREATE TABLE index_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX idx_decl_file ON decl(file_id)",
		"CREATE INDEX idx_decl_type ON decl(type)",

		"CREATE INDEX idx_type_decl_name ON type(decl_name)",

		"CREATE INDEX idx_template_argument_type ON template_argument(type_id)",

		"CREATE INDEX idx_decl_base_base ON decl_base(base_id)",

		"CREATE INDEX idx_decl_tree_ancestor ON decl_tree(ancestor_id)",

		"CREATE INDEX idx_decl_field_decl ON decl_field(decl_id)",
		"CREATE INDEX idx_enum_field_enum ON enum_field(enum_id)",

		"CREATE INDEX idx_func_name ON func(name)",
		"CREATE INDEX idx_func_class ON func(class_id)",

		"CREATE INDEX idx_method_override_overridden ON method_override(overridden_method_id)",

		"CREATE INDEX idx_var_ref_var_decl ON var_ref(var_decl_id)",
		"CREATE INDEX idx_fcall_func ON fcall(func_id)",
		"CREATE INDEX idx_fcall_caller ON fcall(caller_id)",
	}
}

func getAllTriggers() []string {
	return []string{
		`CREATE TRIGGER decl_template_parameter_delete AFTER DELETE ON decl
		BEGIN
			DELETE FROM template_parameter WHERE template_type = 'class' AND template_id = OLD.id;
		END`,
		`CREATE TRIGGER func_template_parameter_delete AFTER DELETE ON func
		BEGIN
			DELETE FROM template_parameter WHERE template_type = 'function' AND template_id = OLD.id;
		END`,
	}
}
