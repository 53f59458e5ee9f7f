package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventKind is the kind of a front-end event.
type EventKind string

const (
	EventFile     EventKind = "file"     // A file is about to be traversed
	EventRecord   EventKind = "record"   // class, struct or union
	EventEnum     EventKind = "enum"     // enum or enum class
	EventTypedef  EventKind = "typedef"  // typedef declaration
	EventAlias    EventKind = "alias"    // using alias, possibly templated
	EventFunction EventKind = "function" // free function, method or constructor
	EventVarDecl  EventKind = "var_decl" // variable declaration site
	EventVarRef   EventKind = "var_ref"  // read or write of a variable
	EventCall     EventKind = "call"     // call site
)

// Location is a source range. Lines and columns are 1-indexed.
type Location struct {
	File        string `json:"file"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column,omitempty"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column,omitempty"`
}

// Event is one declaration or reference observed by the front-end. Only the
// payload matching Kind is set.
type Event struct {
	Kind       EventKind `json:"kind"`
	Name       string    `json:"name,omitempty"` // Qualified name
	Location   Location  `json:"loc"`
	Comment    string    `json:"comment,omitempty"`    // Raw comment text
	Brief      string    `json:"brief,omitempty"`      // First sentence of the comment
	Definition bool      `json:"definition,omitempty"` // false for forward declarations

	Record   *Record   `json:"record,omitempty"`
	Enum     *Enum     `json:"enum,omitempty"`
	Alias    *Alias    `json:"alias,omitempty"` // typedef and alias
	Function *Function `json:"function,omitempty"`
	Var      *Var      `json:"var,omitempty"`
	Ref      *VarRef   `json:"ref,omitempty"`
	Call     *Call     `json:"call,omitempty"`
}

// Record is the payload of a class, struct or union.
type Record struct {
	Tag            string          `json:"tag"` // class, struct, union
	Abstract       bool            `json:"abstract,omitempty"`
	Bases          []Base          `json:"bases,omitempty"` // In base-specifier order
	Fields         []Field         `json:"fields,omitempty"`
	TemplateParams []TemplateParam `json:"template_params,omitempty"`
}

// Base is one base specifier.
type Base struct {
	Name    string `json:"name"` // Qualified name of the base class
	Access  string `json:"access"`
	Virtual bool   `json:"virtual,omitempty"`
}

// Field is a data member.
type Field struct {
	Name     string   `json:"name"`
	Access   string   `json:"access"`
	Type     TypeRef  `json:"type"`
	Location Location `json:"loc"`
	Comment  string   `json:"comment,omitempty"`
	Brief    string   `json:"brief,omitempty"`
}

// Enum is the payload of an enum.
type Enum struct {
	Scoped      bool         `json:"scoped,omitempty"`
	Enumerators []Enumerator `json:"enumerators,omitempty"`
}

// Enumerator is one enum constant.
type Enumerator struct {
	Name     string   `json:"name"`
	Value    int64    `json:"value"`
	Location Location `json:"loc"`
	Comment  string   `json:"comment,omitempty"`
	Brief    string   `json:"brief,omitempty"`
}

// Alias is the payload of a typedef or using alias.
type Alias struct {
	Underlying     TypeRef         `json:"underlying"`
	TemplateParams []TemplateParam `json:"template_params,omitempty"`
}

// TemplateParam is one template parameter in declaration order.
type TemplateParam struct {
	Name     string `json:"name,omitempty"` // Empty for unnamed parameters
	Kind     string `json:"kind"`           // type, non-type, template
	Type     string `json:"type,omitempty"` // Type of a non-type parameter
	Default  string `json:"default,omitempty"`
	Variadic bool   `json:"variadic,omitempty"`
}

// Function is the payload of a function or method.
type Function struct {
	Class          string          `json:"class,omitempty"` // Qualified name of the owning class
	Access         string          `json:"access,omitempty"`
	Return         TypeRef         `json:"return"`
	Params         []Param         `json:"params,omitempty"`
	TemplateParams []TemplateParam `json:"template_params,omitempty"`
	Overrides      []FunctionRef   `json:"overrides,omitempty"`
	Static         bool            `json:"static,omitempty"`
	Inline         bool            `json:"inline,omitempty"`
	Virtual        bool            `json:"virtual,omitempty"`
	Pure           bool            `json:"pure,omitempty"`
	Ctor           bool            `json:"ctor,omitempty"`
	Const          bool            `json:"const,omitempty"`
}

// Param is a function parameter.
type Param struct {
	Name    string  `json:"name,omitempty"`
	Type    TypeRef `json:"type"`
	Default string  `json:"default,omitempty"`
}

// FunctionRef identifies a function by the parts of its signature.
type FunctionRef struct {
	Name           string          `json:"name"` // Qualified name
	Class          string          `json:"class,omitempty"`
	Return         TypeRef         `json:"return"`
	Params         []TypeRef       `json:"params,omitempty"`
	Const          bool            `json:"const,omitempty"`
	TemplateParams []TemplateParam `json:"template_params,omitempty"`
}

// Var is the payload of a variable declaration.
type Var struct {
	Type     TypeRef      `json:"type"`
	Function *FunctionRef `json:"function,omitempty"` // Enclosing function
}

// VarRef is the payload of a variable reference.
type VarRef struct {
	Decl     Location     `json:"decl"` // Location of the referenced declaration
	Write    bool         `json:"write,omitempty"`
	Function *FunctionRef `json:"function,omitempty"`
}

// Call is the payload of a call site.
type Call struct {
	Target FunctionRef  `json:"target"`
	Caller *FunctionRef `json:"caller,omitempty"`
}

// TypeRef is a type as the front-end reports it: either a C++ spelling or a
// structured expression. In JSON a string is a spelling and an object is an
// expression.
type TypeRef struct {
	Spelling string
	Expr     *TypeExpr
}

// Spelled returns a TypeRef for a C++ spelling.
func Spelled(s string) TypeRef { return TypeRef{Spelling: s} }

// IsZero reports whether no type was given.
func (t TypeRef) IsZero() bool { return t.Spelling == "" && t.Expr == nil }

func (t TypeRef) MarshalJSON() ([]byte, error) {
	if t.Expr != nil {
		return json.Marshal(t.Expr)
	}
	return json.Marshal(t.Spelling)
}

func (t *TypeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = TypeRef{}
		return nil
	case data[0] == '"':
		*t = TypeRef{}
		return json.Unmarshal(data, &t.Spelling)
	case data[0] == '{':
		var e TypeExpr
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		*t = TypeRef{Expr: &e}
		return nil
	default:
		return fmt.Errorf("type must be a string or an object, got %s", data)
	}
}

// TypeExpr is a structured type. Exactly one of Pointer, LRef, RRef or the
// named bottom (Name, Slot, Args) is meaningful; indirection layers nest
// outermost first.
type TypeExpr struct {
	Const    bool      `json:"const,omitempty"`
	Volatile bool      `json:"volatile,omitempty"`
	Pointer  *TypeExpr `json:"pointer,omitempty"` // Pointer to
	LRef     *TypeExpr `json:"lref,omitempty"`    // Lvalue reference to
	RRef     *TypeExpr `json:"rref,omitempty"`    // Rvalue reference to

	Name string    `json:"name,omitempty"` // Qualified name, or builtin spelling
	Kind string    `json:"kind,omitempty"` // class, struct, union, enum, typedef, using; empty if unknown
	Slot *int      `json:"slot,omitempty"` // Template parameter index, for parameter uses
	Args []TypeArg `json:"args,omitempty"` // Template specialization arguments
}

// Inner returns the type an indirection layer points at, or nil for the
// bottom layer.
func (e *TypeExpr) Inner() *TypeExpr {
	switch {
	case e.Pointer != nil:
		return e.Pointer
	case e.LRef != nil:
		return e.LRef
	case e.RRef != nil:
		return e.RRef
	}
	return nil
}

// ArgKind is the kind of a template argument.
type ArgKind string

const (
	ArgNull              ArgKind = "Null"
	ArgType              ArgKind = "Type"
	ArgDeclaration       ArgKind = "Declaration"
	ArgNullPtr           ArgKind = "NullPtr"
	ArgIntegral          ArgKind = "Integral"
	ArgTemplate          ArgKind = "Template"
	ArgTemplateExpansion ArgKind = "TemplateExpansion"
	ArgExpression        ArgKind = "Expression"
	ArgPack              ArgKind = "Pack"
)

// TypeArg is one template argument. Type is set for ArgType, Pack for
// ArgPack; every other kind carries its text in Value.
type TypeArg struct {
	Kind  ArgKind   `json:"kind"`
	Type  *TypeExpr `json:"type,omitempty"`
	Value string    `json:"value,omitempty"`
	Pack  []TypeArg `json:"pack,omitempty"`
}
