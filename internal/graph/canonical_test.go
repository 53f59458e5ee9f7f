package graph

// Test Plan for Canonicalizer:
// - "Foo*", "Foo *" and "const Foo*" resolve to one Type; "Foo**" is distinct
// - Attributes (indirection, decl name, spelling) are written on creation only
// - Specializations get ordered argument rows with back-references to argument types
// - Template parameter uses are keyed by slot and have no decl name
// - Known decls lend their kind; unknown names keep their unqualified name
// - Nesting beyond the bound fails with ErrTemplateDepth and writes nothing
// - nil resolves to 0

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/typefind/internal/storage"
)

func resolveText(t *testing.T, c *Canonicalizer, text string, scope Scope) int64 {
	t.Helper()
	id, err := c.Resolve(mustParse(t, text, scope))
	require.NoError(t, err, text)
	return id
}

func TestCanonicalizer_SameType(t *testing.T) {
	t.Parallel()

	s := storage.NewTestStore(t)
	c := NewCanonicalizer(s, 0)

	a := resolveText(t, c, "Foo*", nil)
	b := resolveText(t, c, "Foo *", nil)
	d := resolveText(t, c, "const Foo*", nil)
	e := resolveText(t, c, "Foo**", nil)

	assert.Equal(t, a, b)
	assert.Equal(t, a, d)
	assert.NotEqual(t, a, e)

	reader := storage.NewReader(s.DB())
	rec, err := reader.TypeByID(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "Foo *", rec.Name)
	assert.Equal(t, -1, rec.TemplateParameterIndex)
	assert.Equal(t, "*", rec.Indirection.String)
	assert.Equal(t, "Foo", rec.DeclName.String)
	assert.Equal(t, "Foo *", rec.Spelling.String, "spelling is kept from the first sighting")

	n, err := reader.Count(context.Background(), "type")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCanonicalizer_Arguments(t *testing.T) {
	t.Parallel()

	s := storage.NewTestStore(t)
	c := NewCanonicalizer(s, 0)
	ctx := context.Background()
	reader := storage.NewReader(s.DB())

	id := resolveText(t, c, "std::map<const Foo*, 8>", nil)
	foo := resolveText(t, c, "Foo *", nil)

	args, err := reader.TypeArguments(ctx, id)
	require.NoError(t, err)
	require.Len(t, args, 2)

	assert.Equal(t, "Type", args[0].Kind)
	assert.Equal(t, "Foo *", args[0].Value.String)
	assert.Equal(t, foo, args[0].TypeID.Int64)
	assert.Equal(t, 0, args[0].Index)

	assert.Equal(t, "Integral", args[1].Kind)
	assert.Equal(t, "8", args[1].Value.String)
	assert.False(t, args[1].TypeID.Valid)

	// A second sighting adds nothing.
	again := resolveText(t, c, "std::map<Foo *, 8>", nil)
	assert.Equal(t, id, again)
	args, err = reader.TypeArguments(ctx, id)
	require.NoError(t, err)
	assert.Len(t, args, 2)
}

func TestCanonicalizer_TemplateParameterUse(t *testing.T) {
	t.Parallel()

	s := storage.NewTestStore(t)
	c := NewCanonicalizer(s, 0)
	reader := storage.NewReader(s.DB())

	scope := Scope(nil).With([]TemplateParam{{Name: "T", Kind: "type"}, {Name: "U", Kind: "type"}})
	u := resolveText(t, c, "U&", scope)
	plain := resolveText(t, c, "U&", nil)
	assert.NotEqual(t, u, plain, "a parameter use differs from a class named U")

	rec, err := reader.TypeByID(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TemplateParameterIndex)
	assert.False(t, rec.DeclName.Valid)
	assert.Equal(t, "&", rec.Indirection.String)
}

func TestCanonicalizer_DeclKind(t *testing.T) {
	t.Parallel()

	s := storage.NewTestStore(t)
	c := NewCanonicalizer(s, 0)
	reader := storage.NewReader(s.DB())
	ctx := context.Background()

	declID, _, err := s.Resolver().Decl("ns::Widget")
	require.NoError(t, err)
	require.NoError(t, s.Writer().UpsertDecl(declID, storage.DeclAttrs{Kind: "class"}))

	known, err := reader.TypeByID(ctx, resolveText(t, c, "ns::Widget &", nil))
	require.NoError(t, err)
	assert.Equal(t, "class", known.DeclKind.String)
	assert.Equal(t, "ns::Widget", known.DeclName.String)

	unknown, err := reader.TypeByID(ctx, resolveText(t, c, "other::Gadget", nil))
	require.NoError(t, err)
	assert.False(t, unknown.DeclKind.Valid)
	assert.Equal(t, "Gadget", unknown.DeclName.String)

	tagged, err := reader.TypeByID(ctx, resolveText(t, c, "enum Color", nil))
	require.NoError(t, err)
	assert.Equal(t, "enum", tagged.DeclKind.String)
}

func TestCanonicalizer_DepthBound(t *testing.T) {
	t.Parallel()

	s := storage.NewTestStore(t)
	c := NewCanonicalizer(s, 2)

	_, err := c.Resolve(mustParse(t, "A<B<C<int>>>", nil))
	assert.ErrorIs(t, err, ErrTemplateDepth)

	n, err := storage.NewReader(s.DB()).Count(context.Background(), "type")
	require.NoError(t, err)
	assert.Zero(t, n)

	_ = resolveText(t, c, "A<B<int>>", nil)
}

func TestCanonicalizer_Nil(t *testing.T) {
	t.Parallel()

	c := NewCanonicalizer(storage.NewTestStore(t), 0)
	id, err := c.Resolve(nil)
	require.NoError(t, err)
	assert.Zero(t, id)
}
