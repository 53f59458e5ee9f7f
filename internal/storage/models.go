package storage

// Span is a source range inside one file. FileID <= 0 means the file is
// unknown and is written as NULL.
type Span struct {
	FileID      int64
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Comment is the raw documentation comment and its brief form.
type Comment struct {
	Raw   string
	Brief string
}

// Template parameter owner kinds, stored in template_parameter.template_type.
const (
	OwnerClass    = "class"
	OwnerFunction = "function"
)

// Template parameter kinds.
const (
	ParamType     = "type"
	ParamNonType  = "non-type"
	ParamTemplate = "template"
)

// DeclAttrs are the defining attributes of a Decl. Writing them turns a
// stub into a defined row.
type DeclAttrs struct {
	Kind           string // class, struct, union, enum, typedef, using
	Span           Span
	Comment        Comment
	UnderlyingType string
	IsStruct       bool
	IsAbstract     bool
	IsTemplate     bool
	IsScoped       bool
}

// FunctionAttrs are the defining attributes of a Function.
type FunctionAttrs struct {
	Name         string
	ClassID      int64
	ReturnTypeID int64
	Access       string
	Span         Span
	Comment      Comment
	IsStatic     bool
	IsInline     bool
	IsVirtual    bool
	IsPure       bool
	IsCtor       bool
	IsOverriding bool
	IsConst      bool
}

// TypeAttrs are the canonical decomposition of a Type.
type TypeAttrs struct {
	Indirection string
	DeclName    string
	DeclKind    string
	Spelling    string
}

// VarDeclAttrs describe a variable declaration site.
type VarDeclAttrs struct {
	Name   string
	TypeID int64
	FuncID int64
	Span   Span
}

// TemplateParamRow is one template parameter of a class or function.
type TemplateParamRow struct {
	OwnerID    int64
	OwnerKind  string
	Name       string
	Kind       string
	Type       string
	Value      string
	IsVariadic bool
	Index      int
}

// TypeArgumentRow is one positional argument of a specialization.
type TypeArgumentRow struct {
	TemplateID int64
	TypeID     int64
	Kind       string
	Value      string
	Index      int
}

// FieldRow is a data member of a record.
type FieldRow struct {
	DeclID  int64
	TypeID  int64
	Name    string
	Access  string
	Span    Span
	Comment Comment
}

// EnumFieldRow is an enumerator.
type EnumFieldRow struct {
	EnumID  int64
	Name    string
	Value   int64
	Span    Span
	Comment Comment
}

// ParamRow is a function parameter.
type ParamRow struct {
	FuncID   int64
	Position int
	TypeID   int64
	Name     string
	Default  string
}

// VarRefRow is a read or write of a variable.
type VarRefRow struct {
	VarDeclID int64
	FuncID    int64
	IsWrite   bool
	Span      Span
}

// CallRow is a call site.
type CallRow struct {
	FuncID   int64
	CallerID int64
	Span     Span
}
