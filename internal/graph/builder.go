package graph

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/typefind/internal/storage"
)

// Predicate decides whether declarations from a file are indexed. An empty
// path means the front-end could not tell which file a declaration is in.
type Predicate interface {
	Accept(path string) bool
}

// Skip reasons, as counted in typefind_skips_total.
const (
	SkipFileRejected    = "file_rejected"
	SkipMissingPath     = "missing_path"
	SkipUnknownBase     = "unknown_base"
	SkipUnknownOverride = "unknown_override"
	SkipSameClass       = "same_class_override"
	SkipUnknownVar      = "unknown_variable"
	SkipUnknownFunc     = "unknown_function"
)

// Options configure a Builder.
type Options struct {
	MaxTemplateDepth int
	// OnEvent, if set, is called before each event is applied.
	OnEvent func(*Event)
}

// Stats summarizes a run.
type Stats struct {
	Events  int
	Skipped int
	Failed  int
}

// Builder applies front-end events to a store, one at a time and in order.
// Statement failures are logged and skipped; any other error aborts.
type Builder struct {
	resolver  *storage.Resolver
	writer    *storage.Writer
	hierarchy *storage.Hierarchy
	metrics   *storage.Metrics
	canon     *Canonicalizer
	accept    Predicate
	log       *logrus.Logger
	opts      Options

	accepted    map[string]bool
	classScopes map[string]Scope
	stats       Stats
}

// NewBuilder creates a builder writing to store and consulting accept for
// every new file.
func NewBuilder(store *storage.Store, accept Predicate, opts Options, log *logrus.Logger) *Builder {
	return &Builder{
		resolver:    store.Resolver(),
		writer:      store.Writer(),
		hierarchy:   store.Hierarchy(),
		metrics:     store.Metrics(),
		canon:       NewCanonicalizer(store, opts.MaxTemplateDepth),
		accept:      accept,
		log:         log,
		opts:        opts,
		accepted:    make(map[string]bool),
		classScopes: make(map[string]Scope),
	}
}

// Stats returns the counts so far.
func (b *Builder) Stats() Stats { return b.stats }

// Run applies every event from src. Cancellation is checked between
// events; a cancelled run returns ctx.Err() and must be rolled back.
func (b *Builder) Run(ctx context.Context, src Source) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return b.stats, err
		}
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return b.stats, nil
		}
		if err != nil {
			return b.stats, err
		}
		if err := b.Apply(ev); err != nil {
			return b.stats, err
		}
	}
}

// Apply processes one event. It returns an error only when the run must
// abort, including when the event is malformed.
func (b *Builder) Apply(ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b.stats.Events++
	b.metrics.ObserveEvent(string(ev.Kind))
	if b.opts.OnEvent != nil {
		b.opts.OnEvent(ev)
	}

	var err error
	switch ev.Kind {
	case EventFile:
		_, _, err = b.fileID(ev, ev.Location.File)
	case EventRecord:
		err = b.record(ev)
	case EventEnum:
		err = b.enum(ev)
	case EventTypedef, EventAlias:
		err = b.alias(ev)
	case EventFunction:
		err = b.function(ev)
	case EventVarDecl:
		err = b.varDecl(ev)
	case EventVarRef:
		err = b.varRef(ev)
	case EventCall:
		err = b.call(ev)
	}
	return b.tolerate(ev, err)
}

// tolerate absorbs failures that only affect the current operation.
func (b *Builder) tolerate(ev *Event, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrStatement):
		// The gateway has logged it.
		b.stats.Failed++
		return nil
	case errors.Is(err, ErrTemplateDepth):
		b.stats.Failed++
		b.log.WithFields(logrus.Fields{"kind": ev.Kind, "name": ev.Name}).WithError(err).Warn("type skipped")
		return nil
	}
	return err
}

func (b *Builder) skip(ev *Event, reason, target string) {
	b.stats.Skipped++
	b.metrics.ObserveSkip(reason)
	b.log.WithFields(logrus.Fields{
		"kind":   ev.Kind,
		"name":   ev.Name,
		"target": target,
		"reason": reason,
	}).Debug("skipped")
}

// fileID applies the acceptance predicate, once per path. ok is false when
// the event must be skipped. An accepted empty path yields id 0.
func (b *Builder) fileID(ev *Event, path string) (id int64, ok bool, err error) {
	accepted, seen := b.accepted[path]
	if !seen {
		accepted = b.accept.Accept(path)
		b.accepted[path] = accepted
		b.log.WithFields(logrus.Fields{"path": path, "accepted": accepted}).Debug("file checked")
	}
	if !accepted {
		reason := SkipFileRejected
		if path == "" {
			reason = SkipMissingPath
		}
		b.skip(ev, reason, path)
		return 0, false, nil
	}
	if path == "" {
		return 0, true, nil
	}
	id, _, err = b.resolver.File(path)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// declare resolves the decl named by ev. first is true when this is the
// first defining occurrence, which gates one-time child rows.
func (b *Builder) declare(ev *Event) (id int64, first bool, err error) {
	id, created, err := b.resolver.Decl(ev.Name)
	if err != nil || !ev.Definition {
		return id, false, err
	}
	if created {
		return id, true, nil
	}
	defined, err := b.writer.IsDeclDefined(id)
	return id, !defined, err
}

func (b *Builder) record(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	rec := ev.Record
	scope := Scope(nil).With(rec.TemplateParams)
	if scope != nil {
		b.classScopes[ev.Name] = scope
	}

	id, first, err := b.declare(ev)
	if err != nil || !ev.Definition {
		return err
	}
	err = b.writer.UpsertDecl(id, storage.DeclAttrs{
		Kind:       rec.Tag,
		Span:       span(fileID, ev.Location),
		Comment:    storage.Comment{Raw: ev.Comment, Brief: ev.Brief},
		IsStruct:   rec.Tag == "struct",
		IsAbstract: rec.Abstract,
		IsTemplate: len(rec.TemplateParams) > 0,
	})
	if err != nil || !first {
		return err
	}

	if err := b.templateParams(ev, id, storage.OwnerClass, rec.TemplateParams); err != nil {
		return err
	}

	for i, base := range rec.Bases {
		parent, found, err := b.resolver.LookupDecl(base.Name)
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
		if !found {
			b.skip(ev, SkipUnknownBase, base.Name)
			continue
		}
		err = b.hierarchy.AddBaseEdge(storage.BaseEdge{
			Child:     id,
			Parent:    parent,
			Position:  i,
			Access:    base.Access,
			IsVirtual: base.Virtual,
		})
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}

	for _, f := range rec.Fields {
		typeID, err := b.typeID(ev, f.Type, scope)
		if err != nil {
			return err
		}
		fieldFile := fileID
		if f.Location.File != "" && f.Location.File != ev.Location.File {
			fieldFile, _, err = b.resolver.File(f.Location.File)
			if err := b.tolerate(ev, err); err != nil {
				return err
			}
		}
		_, err = b.writer.InsertField(storage.FieldRow{
			DeclID:  id,
			TypeID:  typeID,
			Name:    f.Name,
			Access:  f.Access,
			Span:    span(fieldFile, f.Location),
			Comment: storage.Comment{Raw: f.Comment, Brief: f.Brief},
		})
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) enum(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	id, first, err := b.declare(ev)
	if err != nil || !ev.Definition {
		return err
	}
	err = b.writer.UpsertDecl(id, storage.DeclAttrs{
		Kind:     "enum",
		Span:     span(fileID, ev.Location),
		Comment:  storage.Comment{Raw: ev.Comment, Brief: ev.Brief},
		IsScoped: ev.Enum.Scoped,
	})
	if err != nil || !first {
		return err
	}
	for _, e := range ev.Enum.Enumerators {
		_, err := b.writer.InsertEnumField(storage.EnumFieldRow{
			EnumID:  id,
			Name:    e.Name,
			Value:   e.Value,
			Span:    span(fileID, e.Location),
			Comment: storage.Comment{Raw: e.Comment, Brief: e.Brief},
		})
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}
	return nil
}

// alias handles typedefs and using aliases. Both are always definitions.
func (b *Builder) alias(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	al := ev.Alias
	scope := Scope(nil).With(al.TemplateParams)

	defining := *ev
	defining.Definition = true
	id, first, err := b.declare(&defining)
	if err != nil {
		return err
	}

	underlying := b.expr(al.Underlying, scope)
	if _, err := b.resolveType(ev, underlying); err != nil {
		return err
	}
	spelling := al.Underlying.Spelling
	if spelling == "" {
		spelling = Spell(underlying)
	}

	kind := "using"
	if ev.Kind == EventTypedef {
		kind = "typedef"
	}
	err = b.writer.UpsertDecl(id, storage.DeclAttrs{
		Kind:           kind,
		Span:           span(fileID, ev.Location),
		Comment:        storage.Comment{Raw: ev.Comment, Brief: ev.Brief},
		UnderlyingType: spelling,
		IsTemplate:     len(al.TemplateParams) > 0,
	})
	if err != nil || !first {
		return err
	}
	return b.templateParams(ev, id, storage.OwnerClass, al.TemplateParams)
}

func (b *Builder) function(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	fn := ev.Function
	scope := b.classScopes[fn.Class].With(fn.TemplateParams)

	ret := b.expr(fn.Return, scope)
	params := make([]*TypeExpr, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = b.expr(p.Type, scope)
	}
	sig := Signature(ret, ev.Name, params, fn.Const)

	id, created, err := b.resolver.Function(sig)
	if err != nil {
		return err
	}
	if !created && !ev.Definition {
		return nil
	}

	var classID int64
	if fn.Class != "" {
		var found bool
		classID, found, err = b.resolver.LookupDecl(fn.Class)
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
		if !found {
			classID = 0
		}
	}
	retID, err := b.resolveType(ev, ret)
	if err != nil {
		return err
	}
	err = b.writer.UpsertFunction(id, storage.FunctionAttrs{
		Name:         ev.Name,
		ClassID:      classID,
		ReturnTypeID: retID,
		Access:       fn.Access,
		Span:         span(fileID, ev.Location),
		Comment:      storage.Comment{Raw: ev.Comment, Brief: ev.Brief},
		IsStatic:     fn.Static,
		IsInline:     fn.Inline,
		IsVirtual:    fn.Virtual,
		IsPure:       fn.Pure,
		IsCtor:       fn.Ctor,
		IsOverriding: len(fn.Overrides) > 0,
		IsConst:      fn.Const,
	})
	if err := b.tolerate(ev, err); err != nil {
		return err
	}
	if !created {
		return nil
	}

	if err := b.templateParams(ev, id, storage.OwnerFunction, fn.TemplateParams); err != nil {
		return err
	}
	for i, p := range fn.Params {
		typeID, err := b.resolveType(ev, params[i])
		if err != nil {
			return err
		}
		_, err = b.writer.InsertParam(storage.ParamRow{
			FuncID:   id,
			Position: i,
			TypeID:   typeID,
			Name:     p.Name,
			Default:  p.Default,
		})
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}
	for _, o := range fn.Overrides {
		if o.Class == fn.Class {
			b.skip(ev, SkipSameClass, o.Name)
			continue
		}
		overridden, found, err := b.lookupFunction(ev, &o)
		if err != nil {
			return err
		}
		if !found {
			b.skip(ev, SkipUnknownOverride, o.Name)
			continue
		}
		_, err = b.writer.InsertOverride(id, overridden)
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) varDecl(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	if fileID == 0 {
		b.skip(ev, SkipMissingPath, ev.Name)
		return nil
	}
	id, _, err := b.resolver.VarDecl(fileID, ev.Location.EndLine, ev.Location.EndColumn)
	if err != nil {
		return err
	}
	funcID, _, err := b.lookupFunction(ev, ev.Var.Function)
	if err != nil {
		return err
	}
	scope := b.enclosingScope(ev.Var.Function)
	typeID, err := b.typeID(ev, ev.Var.Type, scope)
	if err != nil {
		return err
	}
	return b.writer.UpsertVarDecl(id, storage.VarDeclAttrs{
		Name:   ev.Name,
		TypeID: typeID,
		FuncID: funcID,
		Span:   span(fileID, ev.Location),
	})
}

func (b *Builder) varRef(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	if fileID == 0 {
		b.skip(ev, SkipMissingPath, ev.Name)
		return nil
	}

	declFile := ev.Ref.Decl.File
	if declFile == "" {
		declFile = ev.Location.File
	}
	declFileID, found, err := b.resolver.LookupFile(declFile)
	if err != nil {
		return err
	}
	var varID int64
	if found {
		varID, found, err = b.resolver.LookupVarDecl(declFileID, ev.Ref.Decl.EndLine, ev.Ref.Decl.EndColumn)
		if err != nil {
			return err
		}
	}
	if !found {
		b.skip(ev, SkipUnknownVar, ev.Name)
		return nil
	}

	funcID, _, err := b.lookupFunction(ev, ev.Ref.Function)
	if err != nil {
		return err
	}
	_, err = b.writer.InsertVarRef(storage.VarRefRow{
		VarDeclID: varID,
		FuncID:    funcID,
		IsWrite:   ev.Ref.Write,
		Span:      span(fileID, ev.Location),
	})
	return err
}

func (b *Builder) call(ev *Event) error {
	fileID, ok, err := b.fileID(ev, ev.Location.File)
	if err != nil || !ok {
		return err
	}
	if fileID == 0 {
		b.skip(ev, SkipMissingPath, ev.Call.Target.Name)
		return nil
	}
	target, found, err := b.lookupFunction(ev, &ev.Call.Target)
	if err != nil {
		return err
	}
	if !found {
		b.skip(ev, SkipUnknownFunc, ev.Call.Target.Name)
		return nil
	}
	caller, _, err := b.lookupFunction(ev, ev.Call.Caller)
	if err != nil {
		return err
	}
	_, err = b.writer.InsertCall(storage.CallRow{
		FuncID:   target,
		CallerID: caller,
		Span:     span(fileID, ev.Location),
	})
	return err
}

func (b *Builder) templateParams(ev *Event, owner int64, kind string, params []TemplateParam) error {
	for i, p := range params {
		paramKind := p.Kind
		if paramKind == "" {
			paramKind = storage.ParamType
		}
		value := p.Default
		if value != "" && paramKind == storage.ParamNonType {
			value = ExprJSON(value)
		}
		_, err := b.writer.InsertTemplateParam(storage.TemplateParamRow{
			OwnerID:    owner,
			OwnerKind:  kind,
			Name:       p.Name,
			Kind:       paramKind,
			Type:       p.Type,
			Value:      value,
			IsVariadic: p.Variadic,
			Index:      i,
		})
		if err := b.tolerate(ev, err); err != nil {
			return err
		}
	}
	return nil
}

// lookupFunction finds an already indexed function. A nil ref is not
// found.
func (b *Builder) lookupFunction(ev *Event, ref *FunctionRef) (int64, bool, error) {
	if ref == nil || ref.Name == "" {
		return 0, false, nil
	}
	id, found, err := b.resolver.LookupFunction(b.refSignature(ref))
	if err := b.tolerate(ev, err); err != nil {
		return 0, false, err
	}
	return id, found, nil
}

func (b *Builder) refSignature(ref *FunctionRef) string {
	scope := b.classScopes[ref.Class].With(ref.TemplateParams)
	params := make([]*TypeExpr, len(ref.Params))
	for i, p := range ref.Params {
		params[i] = b.expr(p, scope)
	}
	return Signature(b.expr(ref.Return, scope), ref.Name, params, ref.Const)
}

func (b *Builder) enclosingScope(ref *FunctionRef) Scope {
	if ref == nil {
		return nil
	}
	return b.classScopes[ref.Class].With(ref.TemplateParams)
}

// expr turns a TypeRef into an expression, parsing spellings in scope.
// Unsupported spellings become opaque names.
func (b *Builder) expr(ref TypeRef, scope Scope) *TypeExpr {
	if ref.Expr != nil {
		return ref.Expr
	}
	if ref.Spelling == "" {
		return nil
	}
	e, err := ParseType(ref.Spelling, scope)
	if err != nil {
		b.log.WithError(err).Debug("type kept as spelled")
		return Opaque(ref.Spelling)
	}
	return e
}

func (b *Builder) typeID(ev *Event, ref TypeRef, scope Scope) (int64, error) {
	return b.resolveType(ev, b.expr(ref, scope))
}

// resolveType canonicalizes e. A tolerated failure yields id 0 (NULL) and
// no error.
func (b *Builder) resolveType(ev *Event, e *TypeExpr) (int64, error) {
	id, err := b.canon.Resolve(e)
	if err != nil {
		return 0, b.tolerate(ev, err)
	}
	return id, nil
}

func span(fileID int64, loc Location) storage.Span {
	return storage.Span{
		FileID:      fileID,
		StartLine:   loc.StartLine,
		StartColumn: loc.StartColumn,
		EndLine:     loc.EndLine,
		EndColumn:   loc.EndColumn,
	}
}
