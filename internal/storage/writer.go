package storage

import (
	"database/sql"
)

// Writer upserts entity attributes and inserts fact rows. Attribute upserts
// are single UPDATEs: idempotent, last write wins. Fact rows keyed by a
// unique constraint use INSERT OR IGNORE, so re-observing the same fact is
// a no-op and the returned flag is false.
type Writer struct {
	gw *Gateway
}

// UpsertDecl writes the defining attributes of decl id.
func (w *Writer) UpsertDecl(id int64, a DeclAttrs) error {
	s := Update("decl").
		Set("type", Str(a.Kind)).
		Set("underlying_type", Str(a.UnderlyingType)).
		Set("is_struct", Bool(a.IsStruct)).
		Set("is_abstract", Bool(a.IsAbstract)).
		Set("is_template", Bool(a.IsTemplate)).
		Set("is_scoped", Bool(a.IsScoped))
	setSpan(s, a.Span)
	setComment(s, a.Comment)
	_, err := w.gw.Exec(s.Where("id", Int64(id)))
	return err
}

// IsDeclDefined reports whether decl id has had its attributes written.
// A stub has a NULL kind.
func (w *Writer) IsDeclDefined(id int64) (bool, error) {
	var kind sql.NullString
	found, err := w.gw.Scalar(SelectColumn("decl", "type").Where("id", Int64(id)), &kind)
	if err != nil {
		return false, err
	}
	return found && kind.Valid, nil
}

// UpsertFunction writes the defining attributes of function id.
func (w *Writer) UpsertFunction(id int64, a FunctionAttrs) error {
	s := Update("func").
		Set("name", Str(a.Name)).
		Set("class_id", Ref(a.ClassID)).
		Set("return_type_id", Ref(a.ReturnTypeID)).
		Set("access", Str(a.Access)).
		Set("file_id", Ref(a.Span.FileID)).
		Set("start_line", Int(a.Span.StartLine)).
		Set("end_line", Int(a.Span.EndLine)).
		Set("is_static", Bool(a.IsStatic)).
		Set("is_inline", Bool(a.IsInline)).
		Set("is_virtual", Bool(a.IsVirtual)).
		Set("is_pure", Bool(a.IsPure)).
		Set("is_ctor", Bool(a.IsCtor)).
		Set("is_overriding", Bool(a.IsOverriding)).
		Set("is_const", Bool(a.IsConst))
	setComment(s, a.Comment)
	_, err := w.gw.Exec(s.Where("id", Int64(id)))
	return err
}

// UpsertType writes the canonical decomposition of type id.
func (w *Writer) UpsertType(id int64, a TypeAttrs) error {
	s := Update("type").
		Set("indirection", Str(a.Indirection)).
		Set("decl_name", Str(a.DeclName)).
		Set("decl_kind", Str(a.DeclKind)).
		Set("spelling", Str(a.Spelling)).
		Where("id", Int64(id))
	_, err := w.gw.Exec(s)
	return err
}

// UpsertVarDecl writes the attributes of a variable declaration site.
func (w *Writer) UpsertVarDecl(id int64, a VarDeclAttrs) error {
	s := Update("var_decl").
		Set("name", Str(a.Name)).
		Set("type_id", Ref(a.TypeID)).
		Set("func_id", Ref(a.FuncID)).
		Set("start_line", Int(a.Span.StartLine)).
		Set("start_column", Int(a.Span.StartColumn)).
		Where("id", Int64(id))
	_, err := w.gw.Exec(s)
	return err
}

// InsertTemplateParam records a template parameter once per owner and name.
func (w *Writer) InsertTemplateParam(p TemplateParamRow) (bool, error) {
	s := Insert("template_parameter").
		Set("template_id", Int64(p.OwnerID)).
		Set("template_type", Text(p.OwnerKind)).
		Set("name", Str(p.Name)).
		Set("kind", Text(p.Kind)).
		Set("type", Str(p.Type)).
		Set("value", Str(p.Value)).
		Set("is_variadic", Bool(p.IsVariadic)).
		Set("index", Int(p.Index)).
		OrIgnore()
	return w.insert(s)
}

// InsertTypeArgument records one argument of a specialization.
func (w *Writer) InsertTypeArgument(a TypeArgumentRow) (bool, error) {
	s := Insert("template_argument").
		Set("template_id", Int64(a.TemplateID)).
		Set("type_id", Ref(a.TypeID)).
		Set("kind", Text(a.Kind)).
		Set("value", Str(a.Value)).
		Set("index", Int(a.Index)).
		OrIgnore()
	return w.insert(s)
}

// InsertField records a data member.
func (w *Writer) InsertField(f FieldRow) (int64, error) {
	s := Insert("decl_field").
		Set("decl_id", Int64(f.DeclID)).
		Set("type_id", Ref(f.TypeID)).
		Set("name", Text(f.Name)).
		Set("access", Text(f.Access)).
		Set("file_id", Ref(f.Span.FileID)).
		Set("start_line", Int(f.Span.StartLine)).
		Set("end_line", Int(f.Span.EndLine)).
		Set("brief_comment", Str(f.Comment.Brief)).
		Set("comment", Str(f.Comment.Raw))
	id, _, err := w.gw.Insert(s)
	return id, err
}

// InsertEnumField records an enumerator.
func (w *Writer) InsertEnumField(f EnumFieldRow) (int64, error) {
	s := Insert("enum_field").
		Set("enum_id", Int64(f.EnumID)).
		Set("name", Text(f.Name)).
		Set("value", Int64(f.Value)).
		Set("file_id", Ref(f.Span.FileID)).
		Set("start_line", Int(f.Span.StartLine)).
		Set("end_line", Int(f.Span.EndLine)).
		Set("brief_comment", Str(f.Comment.Brief)).
		Set("comment", Str(f.Comment.Raw))
	id, _, err := w.gw.Insert(s)
	return id, err
}

// InsertParam records a function parameter once per position.
func (w *Writer) InsertParam(p ParamRow) (bool, error) {
	s := Insert("func_param").
		Set("func_id", Int64(p.FuncID)).
		Set("position", Int(p.Position)).
		Set("type_id", Ref(p.TypeID)).
		Set("name", Str(p.Name)).
		Set("default_value", Str(p.Default)).
		OrIgnore()
	return w.insert(s)
}

// InsertOverride records that method overrides overridden.
func (w *Writer) InsertOverride(method, overridden int64) (bool, error) {
	s := Insert("method_override").
		Set("method_id", Int64(method)).
		Set("overridden_method_id", Int64(overridden)).
		OrIgnore()
	return w.insert(s)
}

// InsertVarRef records a variable reference, once per end location.
func (w *Writer) InsertVarRef(r VarRefRow) (bool, error) {
	s := Insert("var_ref").
		Set("var_decl_id", Int64(r.VarDeclID)).
		Set("func_id", Ref(r.FuncID)).
		Set("is_write", Bool(r.IsWrite))
	setSpan(s, r.Span)
	return w.insert(s.OrIgnore())
}

// InsertCall records a call site, once per end location.
func (w *Writer) InsertCall(c CallRow) (bool, error) {
	s := Insert("fcall").
		Set("func_id", Int64(c.FuncID)).
		Set("caller_id", Ref(c.CallerID))
	setSpan(s, c.Span)
	return w.insert(s.OrIgnore())
}

func (w *Writer) insert(s *InsertStmt) (bool, error) {
	_, inserted, err := w.gw.Insert(s)
	return inserted, err
}

type setter[T any] interface {
	Set(column string, v Value) T
}

// setSpan writes the location columns shared by decl, var_ref and fcall.
func setSpan[T setter[T]](s T, sp Span) {
	s.Set("file_id", Ref(sp.FileID))
	s.Set("start_line", Int(sp.StartLine))
	s.Set("start_column", Int(sp.StartColumn))
	s.Set("end_line", Int(sp.EndLine))
	s.Set("end_column", Int(sp.EndColumn))
}

func setComment[T setter[T]](s T, c Comment) {
	s.Set("brief_comment", Str(c.Brief))
	s.Set("comment", Str(c.Raw))
}
