package frontend

import (
	"slices"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/typefind/internal/graph"
)

// locals maps variable names to their declaration sites, innermost block
// first.
type locals struct {
	vars   map[string]graph.Location
	parent *locals
}

func newLocals(parent *locals) *locals {
	return &locals{vars: make(map[string]graph.Location), parent: parent}
}

func (l *locals) lookup(name string) (graph.Location, bool) {
	for ; l != nil; l = l.parent {
		if loc, ok := l.vars[name]; ok {
			return loc, true
		}
	}
	return graph.Location{}, false
}

// walker turns one parsed file into events, in source order.
type walker struct {
	path    string
	source  []byte
	root    *sitter.Node
	syms    *symbols
	globals *locals
	events  []*graph.Event
}

func newWalker(u *unit, syms *symbols) *walker {
	return &walker{
		path:    u.path,
		source:  u.source,
		root:    u.tree.RootNode(),
		syms:    syms,
		globals: newLocals(nil),
	}
}

func (w *walker) run() []*graph.Event {
	w.emit(&graph.Event{
		Kind: graph.EventFile,
		Location: graph.Location{
			File:      w.path,
			StartLine: 1,
			EndLine:   int(w.root.EndPosition().Row) + 1,
		},
	})
	w.decls(w.root, scope{})
	return w.events
}

func (w *walker) emit(ev *graph.Event) {
	w.events = append(w.events, ev)
}

func (w *walker) text(n *sitter.Node) string {
	return extractNodeText(n, w.source)
}

func (w *walker) loc(n *sitter.Node) graph.Location {
	return location(w.path, n)
}

// comment attaches the comments directly above anchor.
func (w *walker) comment(ev *graph.Event, anchor *sitter.Node) {
	ev.Comment, ev.Brief = precedingComment(anchor, w.source)
}

func (w *walker) decls(node *sitter.Node, sc scope) {
	for _, c := range children(node) {
		w.decl(c, sc, nil, c)
	}
}

// decl dispatches one declaration. tmpl holds the parameters of an
// enclosing template declaration; anchor is the node comments precede.
func (w *walker) decl(n *sitter.Node, sc scope, tmpl []graph.TemplateParam, anchor *sitter.Node) {
	switch n.Kind() {
	case "namespace_definition":
		inner := sc
		if name := n.ChildByFieldName("name"); name != nil {
			inner = sc.enter(sc.qualify(compact(w.text(name))))
		}
		w.decls(n.ChildByFieldName("body"), inner)
	case "linkage_specification":
		body := n.ChildByFieldName("body")
		if body != nil && body.Kind() == "declaration_list" {
			w.decls(body, sc)
		} else if body != nil {
			w.decl(body, sc, nil, n)
		}
	case "template_declaration":
		params := w.templateParams(n.ChildByFieldName("parameters"), sc)
		inner := sc.withParams(params)
		for _, c := range children(n) {
			switch c.Kind() {
			case "template_parameter_list", "requires_clause", "comment":
				continue
			}
			if c.IsNamed() {
				w.decl(c, inner, params, anchor)
			}
		}
	case "class_specifier", "struct_specifier", "union_specifier":
		w.record(n, sc, tmpl, anchor)
	case "enum_specifier":
		w.enum(n, sc, anchor)
	case "type_definition":
		w.typedef(n, sc, anchor)
	case "alias_declaration":
		w.alias(n, sc, tmpl, anchor)
	case "function_definition":
		w.function(n, sc, tmpl, anchor)
	case "declaration", "field_declaration":
		w.declaration(n, sc, tmpl, anchor)
	}
}

// declaration handles a simple declaration: a record or enum defined in
// it, a function prototype, or variables at namespace scope. Data members
// are read with their class.
func (w *walker) declaration(n *sitter.Node, sc scope, tmpl []graph.TemplateParam, anchor *sitter.Node) {
	typeNode := n.ChildByFieldName("type")
	declarators := fieldChildren(n, "declarator")
	if isSpecifier(typeNode) && (typeNode.ChildByFieldName("body") != nil || len(declarators) == 0) {
		w.decl(typeNode, sc, tmpl, anchor)
	}
	for _, d := range declarators {
		if _, fd := returnLayers(d, w.source); fd != nil {
			w.function(n, sc, tmpl, anchor)
			return
		}
	}
	if sc.class != "" {
		return
	}
	for _, d := range declarators {
		w.variable(n, d, sc, nil, w.globals)
	}
}

func isFunctionDecl(n *sitter.Node, source []byte) bool {
	for _, d := range fieldChildren(n, "declarator") {
		if _, fd := returnLayers(d, source); fd != nil {
			return true
		}
	}
	return false
}

func isPure(n *sitter.Node, source []byte) bool {
	if hasChild(n, "pure_virtual_clause") {
		return true
	}
	def := n.ChildByFieldName("default_value")
	return def != nil && extractNodeText(def, source) == "0"
}

func (w *walker) record(n *sitter.Node, sc scope, tmpl []graph.TemplateParam, anchor *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := sc.qualify(compact(w.text(nameNode)))
	tag := strings.TrimSuffix(n.Kind(), "_specifier")
	body := n.ChildByFieldName("body")

	ev := &graph.Event{
		Kind:       graph.EventRecord,
		Name:       name,
		Location:   w.loc(n),
		Definition: body != nil,
		Record:     &graph.Record{Tag: tag, TemplateParams: tmpl},
	}
	w.comment(ev, anchor)
	if body == nil {
		w.emit(ev)
		return
	}

	access := "public"
	if tag == "class" {
		access = "private"
	}
	ev.Record.Bases = w.bases(n, sc, access)
	info := w.syms.class(name)
	info.params = tmpl
	info.bases = info.bases[:0]
	for _, b := range ev.Record.Bases {
		info.bases = append(info.bases, b.Name)
	}
	inner := sc.enterClass(name, access).withParams(tmpl)

	// Fields travel with the record; methods and nested declarations follow
	// it so they can refer to it.
	type member struct {
		node   *sitter.Node
		access string
	}
	var members []member
	current := access
	for _, c := range children(body) {
		switch c.Kind() {
		case "access_specifier":
			current = compact(w.text(c))
		case "field_declaration":
			if isFunctionDecl(c, w.source) {
				ev.Record.Abstract = ev.Record.Abstract || isPure(c, w.source)
				members = append(members, member{c, current})
				continue
			}
			fieldScope := inner
			fieldScope.access = current
			ev.Record.Fields = append(ev.Record.Fields, w.fields(c, fieldScope)...)
			if t := c.ChildByFieldName("type"); isSpecifier(t) && t.ChildByFieldName("body") != nil {
				members = append(members, member{c, current})
			}
		case "function_definition", "declaration", "template_declaration", "type_definition",
			"alias_declaration", "enum_specifier", "class_specifier", "struct_specifier", "union_specifier":
			members = append(members, member{c, current})
		}
	}
	w.emit(ev)

	for _, m := range members {
		msc := inner
		msc.access = m.access
		w.decl(m.node, msc, nil, m.node)
	}
}

func (w *walker) bases(n *sitter.Node, sc scope, defaultAccess string) []graph.Base {
	var clause *sitter.Node
	for _, c := range children(n) {
		if c.Kind() == "base_class_clause" {
			clause = c
		}
	}
	var out []graph.Base
	access, virtual := defaultAccess, false
	for _, c := range children(clause) {
		switch c.Kind() {
		case "access_specifier":
			access = compact(w.text(c))
		case "virtual":
			virtual = true
		case "type_identifier", "qualified_identifier", "template_type":
			out = append(out, graph.Base{Name: w.typeName(c, sc), Access: access, Virtual: virtual})
			access, virtual = defaultAccess, false
		}
	}
	return out
}

// fields reads the data members of one member declaration. Static members
// are not fields.
func (w *walker) fields(n *sitter.Node, sc scope) []graph.Field {
	if slices.Contains(childText(n, "storage_class_specifier", w.source), "static") {
		return nil
	}
	raw, brief := precedingComment(n, w.source)
	var out []graph.Field
	for _, d := range fieldChildren(n, "declarator") {
		spelling, name := w.declType(n, d, sc)
		if name == nil {
			continue
		}
		out = append(out, graph.Field{
			Name:     w.text(name),
			Access:   sc.access,
			Type:     graph.Spelled(spelling),
			Location: w.loc(n),
			Comment:  raw,
			Brief:    brief,
		})
	}
	return out
}

func (w *walker) enum(n *sitter.Node, sc scope, anchor *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	body := n.ChildByFieldName("body")
	ev := &graph.Event{
		Kind:       graph.EventEnum,
		Name:       sc.qualify(compact(w.text(nameNode))),
		Location:   w.loc(n),
		Definition: body != nil,
		Enum:       &graph.Enum{Scoped: hasChild(n, "class") || hasChild(n, "struct")},
	}
	w.comment(ev, anchor)

	values := make(map[string]int64)
	next := int64(0)
	for _, c := range children(body) {
		if c.Kind() != "enumerator" {
			continue
		}
		name := w.text(c.ChildByFieldName("name"))
		value := next
		if v, ok := w.enumValue(c.ChildByFieldName("value"), values); ok {
			value = v
		}
		values[name] = value
		next = value + 1

		raw, brief := precedingComment(c, w.source)
		ev.Enum.Enumerators = append(ev.Enum.Enumerators, graph.Enumerator{
			Name:     name,
			Value:    value,
			Location: w.loc(c),
			Comment:  raw,
			Brief:    brief,
		})
	}
	w.emit(ev)
}

func (w *walker) typedef(n *sitter.Node, sc scope, anchor *sitter.Node) {
	if t := n.ChildByFieldName("type"); isSpecifier(t) && t.ChildByFieldName("body") != nil {
		w.decl(t, sc, nil, anchor)
	}
	for _, d := range fieldChildren(n, "declarator") {
		spelling, name := w.declType(n, d, sc)
		if name == nil {
			continue
		}
		ev := &graph.Event{
			Kind:       graph.EventTypedef,
			Name:       sc.qualify(w.text(name)),
			Location:   w.loc(n),
			Definition: true,
			Alias:      &graph.Alias{Underlying: graph.Spelled(spelling)},
		}
		w.comment(ev, anchor)
		w.emit(ev)
	}
}

func (w *walker) alias(n *sitter.Node, sc scope, tmpl []graph.TemplateParam, anchor *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	ev := &graph.Event{
		Kind:       graph.EventAlias,
		Name:       sc.qualify(w.text(nameNode)),
		Location:   w.loc(n),
		Definition: true,
		Alias: &graph.Alias{
			Underlying:     graph.Spelled(w.spell(typeNode, sc)),
			TemplateParams: tmpl,
		},
	}
	w.comment(ev, anchor)
	w.emit(ev)
}

// function handles a function definition or a prototype, free or member.
// Out-of-line member definitions are attributed to their class.
func (w *walker) function(n *sitter.Node, sc scope, tmpl []graph.TemplateParam, anchor *sitter.Node) {
	var suffix string
	var fd *sitter.Node
	for _, d := range fieldChildren(n, "declarator") {
		if suffix, fd = returnLayers(d, w.source); fd != nil {
			break
		}
	}
	if fd == nil {
		return
	}
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return
	}
	rawName := compact(w.text(nameNode))
	short := graph.Unqualified(rawName)

	class, name, fsc := sc.class, "", sc
	switch {
	case class != "":
		name = class + "::" + rawName
	case nameNode.Kind() == "qualified_identifier":
		scopePart, _ := splitQualified(strings.TrimPrefix(rawName, "::"))
		if q, info := w.syms.resolveClass(sc, stripArgs(scopePart)); info != nil {
			class = q
			name = q + "::" + short
			fsc = sc.enterClass(q, "").withParams(info.params)
			if len(info.params) > 0 {
				// The class's own parameters, repeated on the definition.
				tmpl = nil
			}
		} else {
			name = sc.qualify(strings.TrimPrefix(rawName, "::"))
		}
	default:
		name = sc.qualify(rawName)
	}
	fsc = fsc.withParams(tmpl)

	ret := ""
	if n.ChildByFieldName("type") != nil {
		ret = w.baseType(n, fsc) + suffix
	}

	var params []graph.Param
	var paramNames []*sitter.Node
	minArgs, maxArgs := -1, 0
	for _, p := range children(fd.ChildByFieldName("parameters")) {
		switch p.Kind() {
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			spelling, pname := w.declType(p, p.ChildByFieldName("declarator"), fsc)
			param := graph.Param{Type: graph.Spelled(spelling), Name: w.text(pname)}
			if def := p.ChildByFieldName("default_value"); def != nil {
				param.Default = compact(w.text(def))
				if minArgs < 0 {
					minArgs = len(params)
				}
			}
			if p.Kind() == "variadic_parameter_declaration" {
				maxArgs = -1
			}
			params = append(params, param)
			paramNames = append(paramNames, pname)
		case "variadic_parameter", "...":
			maxArgs = -1
		}
	}
	if len(params) == 1 && params[0].Name == "" && params[0].Type.Spelling == "void" {
		params, paramNames = nil, nil
	}
	if minArgs < 0 {
		minArgs = len(params)
	}
	if maxArgs == 0 {
		maxArgs = len(params)
	}

	specs := childText(n, "storage_class_specifier", w.source)
	isConst := slices.Contains(childText(fd, "type_qualifier", w.source), "const")
	definition := n.Kind() == "function_definition"

	ref := graph.FunctionRef{
		Name:           name,
		Class:          class,
		Return:         graph.Spelled(ret),
		Const:          isConst,
		TemplateParams: tmpl,
	}
	for _, p := range params {
		ref.Params = append(ref.Params, p.Type)
	}
	fi := &funcInfo{
		ref:     ref,
		short:   short,
		key:     compact(ret) + "(" + paramKey(ref) + ")",
		minArgs: minArgs,
		maxArgs: maxArgs,
		virtual: hasChild(n, "virtual") || hasChild(n, "virtual_function_specifier"),
		static:  slices.Contains(specs, "static"),
		access:  sc.access,
	}

	var overrides []graph.FunctionRef
	if class != "" {
		overrides = w.syms.overridden(class, fi)
		if len(overrides) > 0 {
			fi.virtual = true
		}
	}
	fi = w.syms.addFunc(fi)

	ev := &graph.Event{
		Kind:       graph.EventFunction,
		Name:       name,
		Location:   w.loc(n),
		Definition: definition,
		Function: &graph.Function{
			Class:          class,
			Access:         fi.access,
			Return:         ref.Return,
			Params:         params,
			TemplateParams: tmpl,
			Overrides:      overrides,
			Static:         fi.static,
			Inline:         slices.Contains(specs, "inline") || (sc.class != "" && definition),
			Virtual:        fi.virtual,
			Pure:           isPure(n, w.source),
			Ctor:           class != "" && short == graph.Unqualified(stripArgs(class)),
			Const:          isConst,
		},
	}
	w.comment(ev, anchor)
	w.emit(ev)

	body := n.ChildByFieldName("body")
	if !definition || body == nil {
		return
	}
	env := newLocals(w.globals)
	for i, pname := range paramNames {
		if pname == nil || pname.Kind() != "identifier" {
			continue
		}
		w.declareVar(pname, params[i].Type, &fi.ref, env)
	}
	w.statements(body, &fi.ref, env, fsc)
}

// variable declares each name of a variable declaration and walks its
// initializer.
func (w *walker) variable(decl, d *sitter.Node, sc scope, fn *graph.FunctionRef, env *locals) {
	if _, fd := returnLayers(d, w.source); fd != nil {
		return
	}
	spelling, name := w.declType(decl, d, sc)
	if name == nil || name.Kind() != "identifier" {
		return
	}
	w.declareVar(name, graph.Spelled(spelling), fn, env)
	if d.Kind() == "init_declarator" {
		w.statements(d.ChildByFieldName("value"), fn, env, sc)
	}
}

func (w *walker) declareVar(name *sitter.Node, typ graph.TypeRef, fn *graph.FunctionRef, env *locals) {
	loc := w.loc(name)
	w.emit(&graph.Event{
		Kind:     graph.EventVarDecl,
		Name:     w.text(name),
		Location: loc,
		Var:      &graph.Var{Type: typ, Function: fn},
	})
	env.vars[w.text(name)] = loc
}

// statements walks a function body for local declarations, variable
// references and calls.
func (w *walker) statements(n *sitter.Node, fn *graph.FunctionRef, env *locals, sc scope) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "compound_statement", "for_statement", "if_statement", "while_statement",
		"switch_statement", "catch_clause", "lambda_expression":
		inner := newLocals(env)
		for _, c := range children(n) {
			w.statements(c, fn, inner, sc)
		}
		return
	case "for_range_loop":
		inner := newLocals(env)
		w.statements(n.ChildByFieldName("right"), fn, env, sc)
		w.variable(n, n.ChildByFieldName("declarator"), sc, fn, inner)
		w.statements(n.ChildByFieldName("body"), fn, inner, sc)
		return
	case "declaration":
		for _, d := range fieldChildren(n, "declarator") {
			w.variable(n, d, sc, fn, env)
		}
		return
	case "identifier":
		if decl, ok := env.lookup(w.text(n)); ok {
			w.emit(&graph.Event{
				Kind:     graph.EventVarRef,
				Name:     w.text(n),
				Location: w.loc(n),
				Ref:      &graph.VarRef{Decl: decl, Write: isWrite(n), Function: fn},
			})
		}
		return
	case "call_expression":
		w.call(n, fn, env, sc)
	case "field_expression":
		w.statements(n.ChildByFieldName("argument"), fn, env, sc)
		return
	case "qualified_identifier", "comment", "string_literal", "raw_string_literal":
		return
	}
	for _, c := range children(n) {
		w.statements(c, fn, env, sc)
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// isWrite reports whether an identifier is assigned or incremented.
func isWrite(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "assignment_expression":
		left := parent.ChildByFieldName("left")
		return left != nil && sameNode(left, n)
	case "update_expression":
		return true
	}
	return false
}

// call records a call whose callee resolves to exactly one known function
// accepting the number of arguments given.
func (w *walker) call(n *sitter.Node, fn *graph.FunctionRef, env *locals, sc scope) {
	callee := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if callee == nil || args == nil {
		return
	}
	argc := 0
	for i := uint(0); i < args.NamedChildCount(); i++ {
		if a := args.NamedChild(i); a != nil && a.Kind() != "comment" {
			argc++
		}
	}

	var candidates []*funcInfo
	switch callee.Kind() {
	case "identifier":
		name := w.text(callee)
		if _, isVar := env.lookup(name); isVar {
			return
		}
		candidates = w.syms.lookupFuncs(sc, name)
	case "qualified_identifier":
		candidates = w.syms.lookupFuncs(sc, stripArgs(compact(w.text(callee))))
	case "template_function":
		candidates = w.syms.lookupFuncs(sc, compact(w.text(callee.ChildByFieldName("name"))))
	case "field_expression":
		if field := callee.ChildByFieldName("field"); field != nil {
			candidates = w.syms.methodsNamed(w.text(field))
		}
	}

	var target *funcInfo
	for _, c := range candidates {
		if !c.accepts(argc) {
			continue
		}
		if target != nil {
			return
		}
		target = c
	}
	if target == nil {
		return
	}
	w.emit(&graph.Event{
		Kind:     graph.EventCall,
		Name:     target.ref.Name,
		Location: w.loc(n),
		Call:     &graph.Call{Target: target.ref, Caller: fn},
	})
}
