package storage

// Test Plan for Statement Builder:
// - QuoteString doubles embedded single quotes
// - QuoteIdent backslash-escapes backticks and backslashes
// - Str writes NULL for "" and Text keeps ''
// - Ref writes NULL for zero and negative ids
// - Bool binds as 0/1 and renders as true/false
// - Insert renders columns in Set order, OR IGNORE when requested
// - Update with a NULL condition binds IS NULL
// - String() renders literals with the same escaping as bound values
// - Update without columns fails to build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "''", QuoteString(""))
	assert.Equal(t, "'plain'", QuoteString("plain"))
	assert.Equal(t, "'it''s'", QuoteString("it's"))
	assert.Equal(t, "''''''", QuoteString("''"))
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`decl`", QuoteIdent("decl"))
	assert.Equal(t, "`a\\`b`", QuoteIdent("a`b"))
	assert.Equal(t, "`a\\\\b`", QuoteIdent(`a\b`))
}

func TestValueNullPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   Value
		null    bool
		arg     any
		literal string
	}{
		{"optional empty", Str(""), true, nil, "null"},
		{"optional text", Str("doc"), false, "doc", "'doc'"},
		{"required empty", Text(""), false, "", "''"},
		{"ref zero", Ref(0), true, nil, "null"},
		{"ref negative", Ref(-3), true, nil, "null"},
		{"ref positive", Ref(7), false, int64(7), "7"},
		{"int negative", Int(-1), false, int64(-1), "-1"},
		{"bool true", Bool(true), false, 1, "true"},
		{"bool false", Bool(false), false, 0, "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.null, tt.value.IsNull())
			assert.Equal(t, tt.arg, tt.value.Arg())
			assert.Equal(t, tt.literal, tt.value.Literal())
		})
	}
}

func TestInsertStmt(t *testing.T) {
	t.Parallel()

	s := Insert("decl").Set("name", Text("ns::Foo")).Set("comment", Str("")).OrIgnore()

	query, args, err := s.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT OR IGNORE INTO `decl` (`name`,`comment`) VALUES (?,?)", query)
	assert.Equal(t, []interface{}{"ns::Foo", nil}, args)

	assert.Equal(t, "insert or ignore into `decl`(`name`, `comment`) values ('ns::Foo', null)", s.String())
	assert.Equal(t, "insert", s.Op())
	assert.Equal(t, "decl", s.Table())
}

func TestUpdateStmt(t *testing.T) {
	t.Parallel()

	s := Update("func").
		Set("comment", Str("it's")).
		Set("class_id", Ref(0)).
		Where("id", Int64(4)).
		Where("name", Null())

	query, args, err := s.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `func` SET `comment` = ?, `class_id` = ? WHERE `id` = ? AND `name` IS NULL", query)
	assert.Equal(t, []interface{}{"it's", nil, int64(4)}, args)

	assert.Equal(t, "update `func` set `comment` = 'it''s', `class_id` = null where `id` = 4 and `name` is null", s.String())
}

func TestUpdateStmt_NoColumns(t *testing.T) {
	t.Parallel()

	_, _, err := Update("decl").Where("id", Int(1)).ToSql()
	assert.Error(t, err)
}

func TestSelectStmt(t *testing.T) {
	t.Parallel()

	s := SelectID("type").Where("name", Text("Foo *")).Where("template_parameter_index", Int(-1))

	query, args, err := s.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `type` WHERE `name` = ? AND `template_parameter_index` = ? LIMIT 1", query)
	assert.Equal(t, []interface{}{"Foo *", int64(-1)}, args)
	assert.Equal(t, "select `id` from `type` where `name` = 'Foo *' and `template_parameter_index` = -1 limit 1", s.String())
}

func TestDeleteStmt(t *testing.T) {
	t.Parallel()

	query, args, err := Delete("decl_tree").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `decl_tree`", query)
	assert.Empty(t, args)
}
