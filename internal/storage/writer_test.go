package storage

// Test Plan for Writer:
// - UpsertDecl turns a stub into a defined row; last write wins
// - Optional text is stored as NULL when empty, required text as ''
// - InsertVarRef with the same (file, end line, end column) twice leaves one row
// - InsertCall is idempotent per location
// - InsertParam is idempotent per (function, position)
// - InsertTemplateParam is idempotent per (owner, owner kind, name)
// - UpsertFunction writes a zero class id as NULL

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_UpsertDecl(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	ctx := context.Background()

	id, _, err := s.Resolver().Decl("ns::Foo")
	require.NoError(t, err)

	defined, err := s.Writer().IsDeclDefined(id)
	require.NoError(t, err)
	assert.False(t, defined)

	file, _, err := s.Resolver().File("foo.h")
	require.NoError(t, err)
	require.NoError(t, s.Writer().UpsertDecl(id, DeclAttrs{
		Kind:    "class",
		Span:    Span{FileID: file, StartLine: 3, EndLine: 9},
		Comment: Comment{Raw: "/// It's a foo.", Brief: "It's a foo."},
	}))
	require.NoError(t, s.Writer().UpsertDecl(id, DeclAttrs{
		Kind:     "struct",
		IsStruct: true,
		Span:     Span{FileID: file, StartLine: 4, EndLine: 10},
	}))

	defined, err = s.Writer().IsDeclDefined(id)
	require.NoError(t, err)
	assert.True(t, defined)

	d, err := NewReader(s.DB()).Decl(ctx, "ns::Foo")
	require.NoError(t, err)
	assert.Equal(t, "struct", d.Kind.String)
	assert.True(t, d.IsStruct)
	assert.Equal(t, int64(4), d.StartLine.Int64)
	assert.False(t, d.Comment.Valid, "empty comment is NULL")
}

func TestWriter_VarRefIdempotent(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	file, _, err := s.Resolver().File("main.cpp")
	require.NoError(t, err)
	v, _, err := s.Resolver().VarDecl(file, 2, 8)
	require.NoError(t, err)

	ref := VarRefRow{VarDeclID: v, IsWrite: true, Span: Span{FileID: file, StartLine: 5, StartColumn: 3, EndLine: 5, EndColumn: 4}}
	inserted, err := s.Writer().InsertVarRef(ref)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.Writer().InsertVarRef(ref)
	require.NoError(t, err)
	assert.False(t, inserted)

	refs, err := NewReader(s.DB()).VarRefs(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].IsWrite)
	assert.False(t, refs[0].FuncID.Valid)
}

func TestWriter_CallIdempotent(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	file, _, err := s.Resolver().File("main.cpp")
	require.NoError(t, err)
	f, _, err := s.Resolver().Function("void f()")
	require.NoError(t, err)
	caller, _, err := s.Resolver().Function("int main()")
	require.NoError(t, err)

	call := CallRow{FuncID: f, CallerID: caller, Span: Span{FileID: file, EndLine: 7, EndColumn: 6}}
	for i := 0; i < 3; i++ {
		_, err := s.Writer().InsertCall(call)
		require.NoError(t, err)
	}

	calls, err := NewReader(s.DB()).Calls(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, caller, calls[0].CallerID.Int64)
}

func TestWriter_ParamsAndTemplateParams(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	ctx := context.Background()
	w := s.Writer()

	fn, _, err := s.Resolver().Function("T max(T, T)")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = w.InsertParam(ParamRow{FuncID: fn, Position: 0, Name: "a"})
		require.NoError(t, err)
		_, err = w.InsertTemplateParam(TemplateParamRow{OwnerID: fn, OwnerKind: OwnerFunction, Name: "T", Kind: ParamType})
		require.NoError(t, err)
	}

	r := NewReader(s.DB())
	params, err := r.Params(ctx, fn)
	require.NoError(t, err)
	assert.Len(t, params, 1)

	tparams, err := r.TemplateParams(ctx, fn, OwnerFunction)
	require.NoError(t, err)
	require.Len(t, tparams, 1)
	assert.Equal(t, "T", tparams[0].Name.String)
	assert.Equal(t, ParamType, tparams[0].Kind)
}

func TestWriter_UpsertFunction(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	fn, _, err := s.Resolver().Function("void f()")
	require.NoError(t, err)
	require.NoError(t, s.Writer().UpsertFunction(fn, FunctionAttrs{Name: "f", IsInline: true}))

	rec, err := NewReader(s.DB()).Function(context.Background(), "void f()")
	require.NoError(t, err)
	assert.Equal(t, "f", rec.Name.String)
	assert.False(t, rec.ClassID.Valid)
	assert.True(t, rec.IsInline)
}
