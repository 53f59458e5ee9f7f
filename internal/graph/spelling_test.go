package graph

// Test Plan for ParseType and rendering:
// - Whitespace and cv-qualifier placement do not change the canonical name
// - Spell keeps every qualifier; ParamSpelling drops only the top-level ones
// - Builtin word sequences parse as one name
// - Template arguments nest, and parameters in scope become slots
// - Enclosing-scope arguments fold into the qualified name
// - Non-type arguments are classified as integral, nullptr or expression
// - Packs wrap their element
// - Function types and decltype are rejected; Opaque normalizes the text
// - Signature joins return, name, params and const
// - Nesting counts template argument depth
// - Unqualified ignores "::" inside template arguments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string, scope Scope) *TypeExpr {
	t.Helper()
	e, err := ParseType(text, scope)
	require.NoError(t, err, text)
	return e
}

func TestParseType_CanonicalName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text      string
		canonical string
		spelled   string
	}{
		{"Foo", "Foo", "Foo"},
		{"Foo*", "Foo *", "Foo *"},
		{"Foo *", "Foo *", "Foo *"},
		{"const Foo*", "Foo *", "const Foo *"},
		{"Foo const *", "Foo *", "const Foo *"},
		{"Foo * const", "Foo *", "Foo *const"},
		{"Foo**", "Foo **", "Foo **"},
		{"int const &", "int &", "const int &"},
		{"Foo&&", "Foo &&", "Foo &&"},
		{"unsigned   long long", "unsigned long long", "unsigned long long"},
		{"volatile unsigned const int", "unsigned int", "const volatile unsigned int"},
		{"::ns::Foo", "ns::Foo", "ns::Foo"},
		{"struct ns::Foo *", "ns::Foo *", "ns::Foo *"},
		{"std::map<int, std::vector<Foo*>>", "std::map<int, std::vector<Foo *>>", "std::map<int, std::vector<Foo *>>"},
		{"std::vector<const Foo*>", "std::vector<Foo *>", "std::vector<const Foo *>"},
		{"Empty<>", "Empty<>", "Empty<>"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			e := mustParse(t, tt.text, nil)
			assert.Equal(t, tt.canonical, CanonicalName(e))
			assert.Equal(t, tt.spelled, Spell(e))
		})
	}
}

func TestParseType_Indirection(t *testing.T) {
	t.Parallel()

	c := Decompose(mustParse(t, "const Foo *const *&", nil))
	assert.Equal(t, "**&", c.Indirection)
	assert.Equal(t, "Foo", c.Bottom.Name)
	assert.True(t, c.Bottom.Const)
	assert.Equal(t, -1, c.Slot)

	c = Decompose(mustParse(t, "Foo&&", nil))
	assert.Equal(t, "&&", c.Indirection)
}

func TestParseType_TagKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "struct", mustParse(t, "struct Foo", nil).Kind)
	assert.Equal(t, "enum", mustParse(t, "enum class Color", nil).Kind)
	assert.Empty(t, mustParse(t, "typename T::value_type", nil).Kind)
}

func TestParseType_TemplateSlots(t *testing.T) {
	t.Parallel()

	scope := Scope(nil).With([]TemplateParam{
		{Name: "K", Kind: "type"},
		{Name: "V", Kind: "type"},
		{Name: "N", Kind: "non-type"},
		{Name: "C", Kind: "template"},
	})

	e := mustParse(t, "V*", scope)
	c := Decompose(e)
	assert.Equal(t, "V *", c.Name)
	assert.Equal(t, 1, c.Slot)

	e = mustParse(t, "std::map<K, std::vector<V>>", scope)
	require.Len(t, e.Args, 2)
	require.NotNil(t, e.Args[0].Type.Slot)
	assert.Equal(t, 0, *e.Args[0].Type.Slot)
	inner := e.Args[1].Type
	require.Len(t, inner.Args, 1)
	require.NotNil(t, inner.Args[0].Type.Slot)
	assert.Equal(t, 1, *inner.Args[0].Type.Slot)
	assert.Nil(t, e.Slot, "the specialization itself is not a parameter")

	e = mustParse(t, "Array<V, N>", scope)
	assert.Equal(t, ArgExpression, e.Args[1].Kind)
	assert.Equal(t, "N", e.Args[1].Value)

	e = mustParse(t, "Wrap<C>", scope)
	assert.Equal(t, ArgTemplate, e.Args[0].Kind)

	// Qualified names never refer to a parameter.
	assert.Nil(t, mustParse(t, "ns::K", scope).Slot)
}

func TestScope_WithShadows(t *testing.T) {
	t.Parallel()

	outer := Scope(nil).With([]TemplateParam{{Name: "T", Kind: "type"}})
	inner := outer.With([]TemplateParam{{Name: "U", Kind: "type"}, {Name: "T", Kind: "type"}})

	assert.Equal(t, 0, outer["T"].Index)
	assert.Equal(t, 1, inner["T"].Index)
	assert.Equal(t, 0, inner["U"].Index)
	assert.Len(t, outer, 1, "With must not modify the receiver")
	assert.Nil(t, Scope(nil).With(nil))
}

func TestParseType_NestedScopeArgs(t *testing.T) {
	t.Parallel()

	e := mustParse(t, "ns::Outer<int>::Inner<char>", nil)
	assert.Equal(t, "ns::Outer<int>::Inner", e.Name)
	require.Len(t, e.Args, 1)
	assert.Equal(t, "ns::Outer<int>::Inner<char>", CanonicalName(e))
}

func TestParseType_ArgumentKinds(t *testing.T) {
	t.Parallel()

	e := mustParse(t, "Holder<4, -1, true, nullptr, sizeof(int) + 1>", nil)
	require.Len(t, e.Args, 5)
	assert.Equal(t, TypeArg{Kind: ArgIntegral, Value: "4"}, e.Args[0])
	assert.Equal(t, TypeArg{Kind: ArgIntegral, Value: "-1"}, e.Args[1])
	assert.Equal(t, TypeArg{Kind: ArgIntegral, Value: "true"}, e.Args[2])
	assert.Equal(t, TypeArg{Kind: ArgNullPtr, Value: "nullptr"}, e.Args[3])
	assert.Equal(t, ArgExpression, e.Args[4].Kind)
	assert.Equal(t, "sizeof(int)+1", e.Args[4].Value)
}

func TestParseType_Pack(t *testing.T) {
	t.Parallel()

	scope := Scope(nil).With([]TemplateParam{{Name: "Ts", Kind: "type", Variadic: true}})
	e := mustParse(t, "std::tuple<Ts...>", scope)
	require.Len(t, e.Args, 1)
	pack := e.Args[0]
	assert.Equal(t, ArgPack, pack.Kind)
	require.Len(t, pack.Pack, 1)
	require.NotNil(t, pack.Pack[0].Type.Slot)
	assert.Equal(t, "std::tuple<Ts...>", CanonicalName(e))
	assert.Equal(t, `["Ts"]`, ArgValue(pack))
}

func TestParseType_Unsupported(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"void (*)(int)",
		"int (Foo::*)()",
		"decltype(x)",
		"Foo<int",
		"",
		"Foo @",
	} {
		_, err := ParseType(text, nil)
		assert.ErrorIs(t, err, ErrSpelling, text)
	}

	e := Opaque("void  (*)( int )")
	assert.Equal(t, "void (*)( int )", e.Name)
	assert.Equal(t, "void (*)( int )", CanonicalName(e))
}

func TestSignature(t *testing.T) {
	t.Parallel()

	ret := mustParse(t, "const std::string &", nil)
	params := []*TypeExpr{
		mustParse(t, "const int", nil),
		mustParse(t, "const char *const", nil),
		mustParse(t, "Foo &", nil),
	}
	assert.Equal(t,
		"std::string & ns::Widget::name(int, const char *, Foo &) const",
		Signature(ret, "ns::Widget::name", params, true))

	assert.Equal(t, "void ns::Widget::Widget()", Signature(nil, "ns::Widget::Widget", nil, false))
}

func TestArgValue(t *testing.T) {
	t.Parallel()

	e := mustParse(t, "Holder<const Foo *, 3, a + b>", nil)
	assert.Equal(t, "Foo *", ArgValue(e.Args[0]))
	assert.Equal(t, "3", ArgValue(e.Args[1]))
	assert.Equal(t, `{"kind":"expression","text":"a+b"}`, ArgValue(e.Args[2]))
}

func TestNesting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Nesting(nil))
	assert.Equal(t, 0, Nesting(mustParse(t, "int *", nil)))
	assert.Equal(t, 1, Nesting(mustParse(t, "std::vector<int> *", nil)))
	assert.Equal(t, 3, Nesting(mustParse(t, "A<B<C<int>>, int>", nil)))
}

func TestUnqualified(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Foo", Unqualified("Foo"))
	assert.Equal(t, "Foo", Unqualified("a::b::Foo"))
	assert.Equal(t, "Map<a::K, b::V>", Unqualified("ns::Map<a::K, b::V>"))
}

func TestIsBuiltin(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBuiltin("unsigned long long"))
	assert.True(t, IsBuiltin("void"))
	assert.False(t, IsBuiltin("Foo"))
	assert.False(t, IsBuiltin("long Foo"))
	assert.False(t, IsBuiltin(""))
}
