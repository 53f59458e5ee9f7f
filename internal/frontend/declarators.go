package frontend

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/typefind/internal/graph"
)

func fieldChildren(node *sitter.Node, field string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.FieldNameForChild(uint32(i)) == field {
			if c := node.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func isSpecifier(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return true
	}
	return false
}

func firstNamed(node *sitter.Node) *sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if c := node.NamedChild(i); c != nil && c.Kind() != "comment" {
			return c
		}
	}
	return nil
}

func referenceOp(node *sitter.Node) string {
	if hasChild(node, "&&") {
		return " &&"
	}
	return " &"
}

func pointerLayer(node *sitter.Node, source []byte) string {
	s := " *"
	for _, q := range childText(node, "type_qualifier", source) {
		s += " " + q
	}
	return s
}

// declaratorLayers renders the pointer, reference and array layers of a
// declarator in spelling order and returns the declared name, if any.
// Function pointers are kept whole, without their name.
func declaratorLayers(d *sitter.Node, source []byte) (string, *sitter.Node) {
	var b strings.Builder
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator", "abstract_pointer_declarator":
			b.WriteString(pointerLayer(d, source))
			d = d.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			b.WriteString(referenceOp(d))
			d = firstNamed(d)
		case "array_declarator", "abstract_array_declarator":
			b.WriteString("[" + compact(extractNodeText(d.ChildByFieldName("size"), source)) + "]")
			d = d.ChildByFieldName("declarator")
		case "init_declarator", "attributed_declarator":
			d = d.ChildByFieldName("declarator")
			if d == nil {
				return b.String(), nil
			}
		case "parenthesized_declarator", "variadic_declarator":
			d = firstNamed(d)
		case "function_declarator", "abstract_function_declarator":
			var name *sitter.Node
			walkTree(d, func(n *sitter.Node) bool {
				if name != nil || n.Kind() == "parameter_list" {
					return false
				}
				if n.Kind() == "identifier" || n.Kind() == "field_identifier" {
					name = n
				}
				return name == nil
			})
			text := extractNodeText(d, source)
			if name != nil {
				text = strings.Replace(text, extractNodeText(name, source), "", 1)
			}
			b.WriteString(" " + compact(text))
			return b.String(), name
		default:
			return b.String(), d
		}
	}
	return b.String(), nil
}

// returnLayers finds the function declarator under d. The layers above it
// belong to the return type. fd is nil when d does not declare a function,
// including when it declares a function pointer.
func returnLayers(d *sitter.Node, source []byte) (suffix string, fd *sitter.Node) {
	var b strings.Builder
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator":
			b.WriteString(pointerLayer(d, source))
			d = d.ChildByFieldName("declarator")
		case "reference_declarator":
			b.WriteString(referenceOp(d))
			d = firstNamed(d)
		case "function_declarator":
			inner := d.ChildByFieldName("declarator")
			if inner == nil || inner.Kind() == "parenthesized_declarator" {
				return "", nil
			}
			return b.String(), d
		default:
			return "", nil
		}
	}
	return "", nil
}

// stripArgs removes template argument lists from a name.
func stripArgs(name string) string {
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitQualified splits "a::b::c" into "a::b" and "c".
func splitQualified(name string) (scopePart, short string) {
	short = graph.Unqualified(name)
	return strings.TrimSuffix(strings.TrimSuffix(name, short), "::"), short
}

// spell renders a type specifier with its names qualified as seen from sc.
func (w *walker) spell(n *sitter.Node, sc scope) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "type_identifier", "qualified_identifier", "template_type":
		return w.typeName(n, sc)
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		tag := strings.TrimSuffix(n.Kind(), "_specifier")
		if name := n.ChildByFieldName("name"); name != nil {
			return tag + " " + w.typeName(name, sc)
		}
		return tag + " (anonymous)"
	case "dependent_type":
		if inner := firstNamed(n); inner != nil {
			return "typename " + w.spell(inner, sc)
		}
	case "type_descriptor":
		s, _ := w.declType(n, n.ChildByFieldName("declarator"), sc)
		return s
	}
	return compact(w.text(n))
}

// typeName qualifies a possibly scoped, possibly templated type name. A
// leading "::" names the global scope.
func (w *walker) typeName(n *sitter.Node, sc scope) string {
	s := w.rawName(n, sc)
	if strings.HasPrefix(s, "::") {
		return s[2:]
	}
	head, tail := s, ""
	if i := strings.IndexByte(s, '<'); i >= 0 {
		head, tail = s[:i], s[i:]
	}
	return w.syms.resolveType(sc, head) + tail
}

func (w *walker) rawName(n *sitter.Node, sc scope) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "qualified_identifier":
		name := n.ChildByFieldName("name")
		if name == nil {
			break
		}
		prefix := ""
		if s := n.ChildByFieldName("scope"); s != nil {
			prefix = w.rawName(s, sc)
		}
		return prefix + "::" + w.rawName(name, sc)
	case "template_type", "template_function", "template_method":
		return compact(w.text(n.ChildByFieldName("name"))) + w.templateArgs(n.ChildByFieldName("arguments"), sc)
	}
	return compact(w.text(n))
}

func (w *walker) templateArgs(n *sitter.Node, sc scope) string {
	if n == nil {
		return ""
	}
	var args []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		a := n.NamedChild(i)
		switch {
		case a == nil || a.Kind() == "comment":
		case a.Kind() == "type_descriptor":
			args = append(args, w.spell(a, sc))
		default:
			args = append(args, compact(w.text(a)))
		}
	}
	return "<" + strings.Join(args, ", ") + ">"
}

// declType spells the type a declarator gives its name within decl: decl's
// cv-qualifiers and specifier followed by the declarator's layers.
func (w *walker) declType(decl, declarator *sitter.Node, sc scope) (string, *sitter.Node) {
	base := w.baseType(decl, sc)
	suffix, name := declaratorLayers(declarator, w.source)
	return base + suffix, name
}

func (w *walker) baseType(decl *sitter.Node, sc scope) string {
	var cv []string
	for _, q := range childText(decl, "type_qualifier", w.source) {
		if q == "const" || q == "volatile" {
			cv = append(cv, q)
		}
	}
	s := w.spell(decl.ChildByFieldName("type"), sc)
	if len(cv) > 0 {
		s = strings.Join(cv, " ") + " " + s
	}
	return s
}

// templateParams reads a template parameter list. Later parameters may use
// earlier ones.
func (w *walker) templateParams(list *sitter.Node, sc scope) []graph.TemplateParam {
	var out []graph.TemplateParam
	for _, p := range children(list) {
		var tp graph.TemplateParam
		switch p.Kind() {
		case "type_parameter_declaration":
			tp = graph.TemplateParam{Name: first(childText(p, "type_identifier", w.source)), Kind: "type"}
		case "variadic_type_parameter_declaration":
			tp = graph.TemplateParam{Name: first(childText(p, "type_identifier", w.source)), Kind: "type", Variadic: true}
		case "optional_type_parameter_declaration":
			tp = graph.TemplateParam{
				Name:    w.text(p.ChildByFieldName("name")),
				Kind:    "type",
				Default: w.spell(p.ChildByFieldName("default_type"), sc.withParams(out)),
			}
		case "template_template_parameter_declaration":
			tp = graph.TemplateParam{Kind: "template"}
			for _, c := range children(p) {
				switch c.Kind() {
				case "type_parameter_declaration", "variadic_type_parameter_declaration":
					tp.Name = first(childText(c, "type_identifier", w.source))
					tp.Variadic = c.Kind() == "variadic_type_parameter_declaration"
				case "optional_type_parameter_declaration":
					tp.Name = w.text(c.ChildByFieldName("name"))
					tp.Default = compact(w.text(c.ChildByFieldName("default_type")))
				}
			}
		case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
			spelling, name := w.declType(p, p.ChildByFieldName("declarator"), sc.withParams(out))
			tp = graph.TemplateParam{
				Name:     w.text(name),
				Kind:     "non-type",
				Type:     strings.TrimSpace(spelling),
				Default:  compact(w.text(p.ChildByFieldName("default_value"))),
				Variadic: p.Kind() == "variadic_parameter_declaration",
			}
		default:
			continue
		}
		out = append(out, tp)
	}
	return out
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// enumValue evaluates an enumerator initializer: literals, earlier
// enumerators and arithmetic on them.
func (w *walker) enumValue(n *sitter.Node, values map[string]int64) (int64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Kind() {
	case "number_literal":
		text := strings.ReplaceAll(w.text(n), "'", "")
		text = strings.TrimRight(text, "uUlL")
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(text, 0, 64)
			if uerr != nil {
				return 0, false
			}
			v = int64(u)
		}
		return v, true
	case "char_literal":
		s, err := strconv.Unquote(w.text(n))
		if err != nil || len(s) == 0 {
			return 0, false
		}
		return int64(s[0]), true
	case "true":
		return 1, true
	case "false":
		return 0, true
	case "identifier":
		v, ok := values[w.text(n)]
		return v, ok
	case "qualified_identifier":
		v, ok := values[graph.Unqualified(w.text(n))]
		return v, ok
	case "parenthesized_expression":
		return w.enumValue(firstNamed(n), values)
	case "unary_expression":
		v, ok := w.enumValue(n.ChildByFieldName("argument"), values)
		if !ok {
			return 0, false
		}
		switch w.text(n.ChildByFieldName("operator")) {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case "binary_expression":
		l, lok := w.enumValue(n.ChildByFieldName("left"), values)
		r, rok := w.enumValue(n.ChildByFieldName("right"), values)
		if !lok || !rok {
			return 0, false
		}
		switch w.text(n.ChildByFieldName("operator")) {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		case "/":
			if r != 0 {
				return l / r, true
			}
		case "%":
			if r != 0 {
				return l % r, true
			}
		case "<<":
			if r >= 0 && r < 64 {
				return l << uint(r), true
			}
		case ">>":
			if r >= 0 && r < 64 {
				return l >> uint(r), true
			}
		case "|":
			return l | r, true
		case "&":
			return l & r, true
		case "^":
			return l ^ r, true
		}
	}
	return 0, false
}
