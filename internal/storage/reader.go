package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by Reader lookups that match no row.
var ErrNotFound = errors.New("not found")

// Reader runs typed read queries against a store. It uses the store's
// connection directly, so it must not be used while a run's transaction is
// open.
type Reader struct {
	db *sqlx.DB
}

// NewReader wraps db for typed reads.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: sqlx.NewDb(db, "sqlite3")}
}

// DeclRecord is a decl row.
type DeclRecord struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	Kind           sql.NullString `db:"type"`
	FileID         sql.NullInt64  `db:"file_id"`
	StartLine      sql.NullInt64  `db:"start_line"`
	EndLine        sql.NullInt64  `db:"end_line"`
	StartColumn    sql.NullInt64  `db:"start_column"`
	EndColumn      sql.NullInt64  `db:"end_column"`
	BriefComment   sql.NullString `db:"brief_comment"`
	Comment        sql.NullString `db:"comment"`
	UnderlyingType sql.NullString `db:"underlying_type"`
	IsStruct       bool           `db:"is_struct"`
	IsAbstract     bool           `db:"is_abstract"`
	IsTemplate     bool           `db:"is_template"`
	IsScoped       bool           `db:"is_scoped"`
}

// BaseRecord is a direct inheritance edge.
type BaseRecord struct {
	DeclID    int64  `db:"decl_id"`
	BaseID    int64  `db:"base_id"`
	Position  int    `db:"position"`
	Access    string `db:"access"`
	IsVirtual bool   `db:"is_virtual"`
}

// TreeRow is one transitive closure row.
type TreeRow struct {
	DeclID     int64 `db:"decl_id"`
	AncestorID int64 `db:"ancestor_id"`
	Level      int   `db:"level"`
}

// TypeRecord is a canonical type.
type TypeRecord struct {
	ID                     int64          `db:"id"`
	Name                   string         `db:"name"`
	TemplateParameterIndex int            `db:"template_parameter_index"`
	Indirection            sql.NullString `db:"indirection"`
	DeclName               sql.NullString `db:"decl_name"`
	DeclKind               sql.NullString `db:"decl_kind"`
	Spelling               sql.NullString `db:"spelling"`
}

// TypeArgumentRecord is one argument of a specialization.
type TypeArgumentRecord struct {
	TemplateID int64          `db:"template_id"`
	TypeID     sql.NullInt64  `db:"type_id"`
	Kind       string         `db:"kind"`
	Value      sql.NullString `db:"value"`
	Index      int            `db:"index"`
}

// TemplateParamRecord is one template parameter.
type TemplateParamRecord struct {
	TemplateID   int64          `db:"template_id"`
	TemplateType string         `db:"template_type"`
	Name         sql.NullString `db:"name"`
	Kind         string         `db:"kind"`
	Type         sql.NullString `db:"type"`
	Value        sql.NullString `db:"value"`
	IsVariadic   bool           `db:"is_variadic"`
	Index        int            `db:"index"`
}

// FunctionRecord is a func row.
type FunctionRecord struct {
	ID           int64          `db:"id"`
	Name         sql.NullString `db:"name"`
	Signature    string         `db:"signature"`
	ClassID      sql.NullInt64  `db:"class_id"`
	ReturnTypeID sql.NullInt64  `db:"return_type_id"`
	Access       sql.NullString `db:"access"`
	FileID       sql.NullInt64  `db:"file_id"`
	StartLine    sql.NullInt64  `db:"start_line"`
	EndLine      sql.NullInt64  `db:"end_line"`
	BriefComment sql.NullString `db:"brief_comment"`
	Comment      sql.NullString `db:"comment"`
	IsStatic     bool           `db:"is_static"`
	IsInline     bool           `db:"is_inline"`
	IsVirtual    bool           `db:"is_virtual"`
	IsPure       bool           `db:"is_pure"`
	IsCtor       bool           `db:"is_ctor"`
	IsOverriding bool           `db:"is_overriding"`
	IsConst      bool           `db:"is_const"`
}

// ParamRecord is a function parameter.
type ParamRecord struct {
	FuncID       int64          `db:"func_id"`
	Position     int            `db:"position"`
	TypeID       sql.NullInt64  `db:"type_id"`
	Name         sql.NullString `db:"name"`
	DefaultValue sql.NullString `db:"default_value"`
}

// FieldRecord is a data member.
type FieldRecord struct {
	DeclID       int64          `db:"decl_id"`
	TypeID       sql.NullInt64  `db:"type_id"`
	Name         string         `db:"name"`
	Access       string         `db:"access"`
	BriefComment sql.NullString `db:"brief_comment"`
	Comment      sql.NullString `db:"comment"`
}

// EnumFieldRecord is an enumerator.
type EnumFieldRecord struct {
	EnumID int64  `db:"enum_id"`
	Name   string `db:"name"`
	Value  int64  `db:"value"`
}

// VarDeclRecord is a variable declaration site.
type VarDeclRecord struct {
	ID        int64          `db:"id"`
	Name      sql.NullString `db:"name"`
	TypeID    sql.NullInt64  `db:"type_id"`
	FuncID    sql.NullInt64  `db:"func_id"`
	FileID    int64          `db:"file_id"`
	EndLine   int            `db:"end_line"`
	EndColumn int            `db:"end_column"`
}

// VarRefRecord is a variable reference.
type VarRefRecord struct {
	VarDeclID int64         `db:"var_decl_id"`
	FuncID    sql.NullInt64 `db:"func_id"`
	IsWrite   bool          `db:"is_write"`
	FileID    int64         `db:"file_id"`
	EndLine   int           `db:"end_line"`
	EndColumn int           `db:"end_column"`
}

// CallRecord is a call site.
type CallRecord struct {
	FuncID    int64         `db:"func_id"`
	CallerID  sql.NullInt64 `db:"caller_id"`
	FileID    int64         `db:"file_id"`
	EndLine   int           `db:"end_line"`
	EndColumn int           `db:"end_column"`
}

// TableCount is the number of rows in one table.
type TableCount struct {
	Table string
	Rows  int64
}

// Decl returns the decl with the given qualified name.
func (r *Reader) Decl(ctx context.Context, name string) (*DeclRecord, error) {
	var d DeclRecord
	if err := r.get(ctx, &d, "SELECT * FROM decl WHERE name = ?", name); err != nil {
		return nil, fmt.Errorf("decl %q: %w", name, err)
	}
	return &d, nil
}

// Decls returns every decl ordered by id.
func (r *Reader) Decls(ctx context.Context) ([]DeclRecord, error) {
	var out []DeclRecord
	err := r.db.SelectContext(ctx, &out, "SELECT * FROM decl ORDER BY id")
	return out, wrap("decls", err)
}

// Bases returns the direct bases of decl id in position order. id 0 returns
// every edge.
func (r *Reader) Bases(ctx context.Context, id int64) ([]BaseRecord, error) {
	var out []BaseRecord
	var err error
	if id == 0 {
		err = r.db.SelectContext(ctx, &out,
			"SELECT decl_id, base_id, position, access, is_virtual FROM decl_base ORDER BY decl_id, position")
	} else {
		err = r.db.SelectContext(ctx, &out,
			"SELECT decl_id, base_id, position, access, is_virtual FROM decl_base WHERE decl_id = ? ORDER BY position", id)
	}
	return out, wrap("bases", err)
}

// Closure returns the closure rows of decl id. id 0 returns every row.
func (r *Reader) Closure(ctx context.Context, id int64) ([]TreeRow, error) {
	var out []TreeRow
	var err error
	if id == 0 {
		err = r.db.SelectContext(ctx, &out,
			"SELECT decl_id, ancestor_id, level FROM decl_tree ORDER BY decl_id, level, ancestor_id")
	} else {
		err = r.db.SelectContext(ctx, &out,
			"SELECT decl_id, ancestor_id, level FROM decl_tree WHERE decl_id = ? ORDER BY level, ancestor_id", id)
	}
	return out, wrap("closure", err)
}

// Type returns the type with the given canonical name and slot.
func (r *Reader) Type(ctx context.Context, name string, slot int) (*TypeRecord, error) {
	var t TypeRecord
	if err := r.get(ctx, &t, "SELECT * FROM type WHERE name = ? AND template_parameter_index = ?", name, slot); err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}
	return &t, nil
}

// TypeByID returns the type with the given id.
func (r *Reader) TypeByID(ctx context.Context, id int64) (*TypeRecord, error) {
	var t TypeRecord
	if err := r.get(ctx, &t, "SELECT * FROM type WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("type %d: %w", id, err)
	}
	return &t, nil
}

// Types returns every type ordered by id.
func (r *Reader) Types(ctx context.Context) ([]TypeRecord, error) {
	var out []TypeRecord
	err := r.db.SelectContext(ctx, &out, "SELECT * FROM type ORDER BY id")
	return out, wrap("types", err)
}

// TypeArguments returns the arguments of specialization id in order.
func (r *Reader) TypeArguments(ctx context.Context, id int64) ([]TypeArgumentRecord, error) {
	var out []TypeArgumentRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT template_id, type_id, kind, value, `index` FROM template_argument WHERE template_id = ? ORDER BY `index`", id)
	return out, wrap("template arguments", err)
}

// TemplateParams returns the template parameters of an owner in order.
func (r *Reader) TemplateParams(ctx context.Context, ownerID int64, ownerKind string) ([]TemplateParamRecord, error) {
	var out []TemplateParamRecord
	err := r.db.SelectContext(ctx, &out, `
		SELECT template_id, template_type, name, kind, type, value, is_variadic, "index"
		FROM template_parameter WHERE template_id = ? AND template_type = ? ORDER BY "index"`,
		ownerID, ownerKind)
	return out, wrap("template parameters", err)
}

// Function returns the function with the given signature.
func (r *Reader) Function(ctx context.Context, signature string) (*FunctionRecord, error) {
	var f FunctionRecord
	if err := r.get(ctx, &f, "SELECT * FROM func WHERE signature = ?", signature); err != nil {
		return nil, fmt.Errorf("function %q: %w", signature, err)
	}
	return &f, nil
}

// Functions returns every function ordered by id.
func (r *Reader) Functions(ctx context.Context) ([]FunctionRecord, error) {
	var out []FunctionRecord
	err := r.db.SelectContext(ctx, &out, "SELECT * FROM func ORDER BY id")
	return out, wrap("functions", err)
}

// Params returns the parameters of function id in position order.
func (r *Reader) Params(ctx context.Context, id int64) ([]ParamRecord, error) {
	var out []ParamRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT func_id, position, type_id, name, default_value FROM func_param WHERE func_id = ? ORDER BY position", id)
	return out, wrap("params", err)
}

// Overrides returns the ids of the methods that function id overrides.
func (r *Reader) Overrides(ctx context.Context, id int64) ([]int64, error) {
	var out []int64
	err := r.db.SelectContext(ctx, &out,
		"SELECT overridden_method_id FROM method_override WHERE method_id = ? ORDER BY overridden_method_id", id)
	return out, wrap("overrides", err)
}

// Fields returns the data members of decl id in insertion order.
func (r *Reader) Fields(ctx context.Context, id int64) ([]FieldRecord, error) {
	var out []FieldRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT decl_id, type_id, name, access, brief_comment, comment FROM decl_field WHERE decl_id = ? ORDER BY id", id)
	return out, wrap("fields", err)
}

// EnumFields returns the enumerators of enum id in insertion order.
func (r *Reader) EnumFields(ctx context.Context, id int64) ([]EnumFieldRecord, error) {
	var out []EnumFieldRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT enum_id, name, value FROM enum_field WHERE enum_id = ? ORDER BY id", id)
	return out, wrap("enum fields", err)
}

// VarDecls returns every variable declaration site.
func (r *Reader) VarDecls(ctx context.Context) ([]VarDeclRecord, error) {
	var out []VarDeclRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, name, type_id, func_id, file_id, end_line, end_column FROM var_decl ORDER BY id")
	return out, wrap("var decls", err)
}

// VarRefs returns every variable reference.
func (r *Reader) VarRefs(ctx context.Context) ([]VarRefRecord, error) {
	var out []VarRefRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT var_decl_id, func_id, is_write, file_id, end_line, end_column FROM var_ref ORDER BY id")
	return out, wrap("var refs", err)
}

// Calls returns every call site.
func (r *Reader) Calls(ctx context.Context) ([]CallRecord, error) {
	var out []CallRecord
	err := r.db.SelectContext(ctx, &out,
		"SELECT func_id, caller_id, file_id, end_line, end_column FROM fcall ORDER BY id")
	return out, wrap("calls", err)
}

// Counts returns the row count of every data table in schema order.
func (r *Reader) Counts(ctx context.Context) ([]TableCount, error) {
	out := make([]TableCount, 0, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+QuoteIdent(table)); err != nil {
			return nil, wrap("count "+table, err)
		}
		out = append(out, TableCount{Table: table, Rows: n})
	}
	return out, nil
}

// Count returns the row count of one table.
func (r *Reader) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+QuoteIdent(table))
	return n, wrap("count "+table, err)
}

// Metadata returns every index_metadata entry.
func (r *Reader) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT key, value FROM index_metadata")
	if err != nil {
		return nil, wrap("metadata", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrap("metadata", err)
		}
		out[key] = value
	}
	return out, wrap("metadata", rows.Err())
}

func (r *Reader) get(ctx context.Context, dest any, query string, args ...any) error {
	err := r.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}
