package storage

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindInt
	kindBool
)

// Value is a single column value. It carries its own NULL policy so that
// the rules for optional text and not-applicable references live here and
// nowhere else.
type Value struct {
	kind valueKind
	str  string
	num  int64
	b    bool
}

// Null is an explicit SQL NULL.
func Null() Value { return Value{kind: kindNull} }

// Str is optional free text: the empty string is written as NULL.
func Str(s string) Value {
	if s == "" {
		return Null()
	}
	return Value{kind: kindString, str: s}
}

// Text is required text: the empty string is written as ''.
func Text(s string) Value { return Value{kind: kindString, str: s} }

// Int is an integer value.
func Int(n int) Value { return Value{kind: kindInt, num: int64(n)} }

// Int64 is an integer value.
func Int64(n int64) Value { return Value{kind: kindInt, num: n} }

// Bool is a boolean value, stored as 0/1.
func Bool(b bool) Value { return Value{kind: kindBool, b: b} }

// Ref is a foreign key. Zero or negative ids mean "not applicable" and are
// written as NULL rather than pointing at a sentinel row.
func Ref(id int64) Value {
	if id <= 0 {
		return Null()
	}
	return Value{kind: kindInt, num: id}
}

// IsNull reports whether v is written as NULL.
func (v Value) IsNull() bool { return v.kind == kindNull }

// Arg returns the driver argument for v.
func (v Value) Arg() any {
	switch v.kind {
	case kindString:
		return v.str
	case kindInt:
		return v.num
	case kindBool:
		return boolToInt(v.b)
	default:
		return nil
	}
}

// Literal renders v as an SQL literal.
func (v Value) Literal() string {
	switch v.kind {
	case kindString:
		return QuoteString(v.str)
	case kindInt:
		return strconv.FormatInt(v.num, 10)
	case kindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return "null"
	}
}

// QuoteString renders s as a single-quoted SQL string, doubling embedded quotes.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b.WriteByte('\'')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}

// QuoteIdent renders an identifier in backticks, backslash-escaping
// backslashes and backticks.
func QuoteIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('`')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '`' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('`')
	return b.String()
}

// Assignment pairs a column with its value.
type Assignment struct {
	Column string
	Value  Value
}

// Statement is a buildable SQL statement that knows which table it touches
// and how to render itself for diagnostics.
type Statement interface {
	sq.Sqlizer
	Op() string
	Table() string
	String() string
}

// InsertStmt builds a single-row INSERT.
type InsertStmt struct {
	table    string
	row      []Assignment
	orIgnore bool
}

// Insert starts an INSERT into table.
func Insert(table string) *InsertStmt {
	return &InsertStmt{table: table}
}

// Set assigns a column value.
func (s *InsertStmt) Set(column string, v Value) *InsertStmt {
	s.row = append(s.row, Assignment{Column: column, Value: v})
	return s
}

// OrIgnore turns the statement into INSERT OR IGNORE, so a duplicate key is
// a no-op instead of a failure.
func (s *InsertStmt) OrIgnore() *InsertStmt {
	s.orIgnore = true
	return s
}

func (s *InsertStmt) Op() string    { return "insert" }
func (s *InsertStmt) Table() string { return s.table }

func (s *InsertStmt) ToSql() (string, []interface{}, error) {
	b := sq.Insert(QuoteIdent(s.table))
	if s.orIgnore {
		b = b.Options("OR IGNORE")
	}
	cols := make([]string, 0, len(s.row))
	args := make([]interface{}, 0, len(s.row))
	for _, a := range s.row {
		cols = append(cols, QuoteIdent(a.Column))
		args = append(args, a.Value.Arg())
	}
	return b.Columns(cols...).Values(args...).ToSql()
}

func (s *InsertStmt) String() string {
	var b strings.Builder
	b.WriteString("insert ")
	if s.orIgnore {
		b.WriteString("or ignore ")
	}
	b.WriteString("into ")
	b.WriteString(QuoteIdent(s.table))
	b.WriteByte('(')
	for i, a := range s.row {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(a.Column))
	}
	b.WriteString(") values (")
	for i, a := range s.row {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Value.Literal())
	}
	b.WriteByte(')')
	return b.String()
}

// UpdateStmt builds an UPDATE with equality conditions.
type UpdateStmt struct {
	table string
	set   []Assignment
	where []Assignment
}

// Update starts an UPDATE of table.
func Update(table string) *UpdateStmt {
	return &UpdateStmt{table: table}
}

// Set assigns a column value.
func (s *UpdateStmt) Set(column string, v Value) *UpdateStmt {
	s.set = append(s.set, Assignment{Column: column, Value: v})
	return s
}

// Where adds an equality condition. A NULL value matches IS NULL.
func (s *UpdateStmt) Where(column string, v Value) *UpdateStmt {
	s.where = append(s.where, Assignment{Column: column, Value: v})
	return s
}

func (s *UpdateStmt) Op() string    { return "update" }
func (s *UpdateStmt) Table() string { return s.table }

func (s *UpdateStmt) ToSql() (string, []interface{}, error) {
	if len(s.set) == 0 {
		return "", nil, fmt.Errorf("update %s: no columns to set", s.table)
	}
	b := sq.Update(QuoteIdent(s.table))
	for _, a := range s.set {
		b = b.Set(QuoteIdent(a.Column), a.Value.Arg())
	}
	for _, w := range s.where {
		b = b.Where(sq.Eq{QuoteIdent(w.Column): w.Value.Arg()})
	}
	return b.ToSql()
}

func (s *UpdateStmt) String() string {
	var b strings.Builder
	b.WriteString("update ")
	b.WriteString(QuoteIdent(s.table))
	b.WriteString(" set ")
	for i, a := range s.set {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(a.Column))
		b.WriteString(" = ")
		b.WriteString(a.Value.Literal())
	}
	writeWhere(&b, s.where)
	return b.String()
}

// SelectStmt builds a single-column lookup by equality conditions.
type SelectStmt struct {
	table  string
	column string
	where  []Assignment
}

// SelectID looks up the id column of table.
func SelectID(table string) *SelectStmt {
	return &SelectStmt{table: table, column: "id"}
}

// SelectColumn looks up an arbitrary column of table.
func SelectColumn(table, column string) *SelectStmt {
	return &SelectStmt{table: table, column: column}
}

// Where adds an equality condition. A NULL value matches IS NULL.
func (s *SelectStmt) Where(column string, v Value) *SelectStmt {
	s.where = append(s.where, Assignment{Column: column, Value: v})
	return s
}

func (s *SelectStmt) Op() string    { return "select" }
func (s *SelectStmt) Table() string { return s.table }

func (s *SelectStmt) ToSql() (string, []interface{}, error) {
	b := sq.Select(QuoteIdent(s.column)).From(QuoteIdent(s.table))
	for _, w := range s.where {
		b = b.Where(sq.Eq{QuoteIdent(w.Column): w.Value.Arg()})
	}
	return b.Limit(1).ToSql()
}

func (s *SelectStmt) String() string {
	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(QuoteIdent(s.column))
	b.WriteString(" from ")
	b.WriteString(QuoteIdent(s.table))
	writeWhere(&b, s.where)
	b.WriteString(" limit 1")
	return b.String()
}

// DeleteStmt builds a DELETE. With no conditions it clears the table.
type DeleteStmt struct {
	table string
	where []Assignment
}

// Delete starts a DELETE from table.
func Delete(table string) *DeleteStmt {
	return &DeleteStmt{table: table}
}

// Where adds an equality condition.
func (s *DeleteStmt) Where(column string, v Value) *DeleteStmt {
	s.where = append(s.where, Assignment{Column: column, Value: v})
	return s
}

func (s *DeleteStmt) Op() string    { return "delete" }
func (s *DeleteStmt) Table() string { return s.table }

func (s *DeleteStmt) ToSql() (string, []interface{}, error) {
	b := sq.Delete(QuoteIdent(s.table))
	for _, w := range s.where {
		b = b.Where(sq.Eq{QuoteIdent(w.Column): w.Value.Arg()})
	}
	return b.ToSql()
}

func (s *DeleteStmt) String() string {
	var b strings.Builder
	b.WriteString("delete from ")
	b.WriteString(QuoteIdent(s.table))
	writeWhere(&b, s.where)
	return b.String()
}

// rawStmt wraps a hand-assembled squirrel builder (e.g. INSERT ... SELECT).
type rawStmt struct {
	op    string
	table string
	sq.Sqlizer
}

func (s rawStmt) Op() string    { return s.op }
func (s rawStmt) Table() string { return s.table }
func (s rawStmt) String() string {
	return sq.DebugSqlizer(s.Sqlizer)
}

func writeWhere(b *strings.Builder, where []Assignment) {
	for i, w := range where {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(QuoteIdent(w.Column))
		if w.Value.IsNull() {
			b.WriteString(" is null")
			continue
		}
		b.WriteString(" = ")
		b.WriteString(w.Value.Literal())
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
