package frontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/typefind/internal/graph"
)

// scope is the lexical context of a declaration.
type scope struct {
	prefixes []string // Qualified names of the enclosing namespaces and classes, outermost first
	class    string   // Qualified name of the class whose body this is
	access   string
	params   map[string]bool // Template parameter names in scope
}

func (s scope) prefix() string {
	if len(s.prefixes) == 0 {
		return ""
	}
	return s.prefixes[len(s.prefixes)-1]
}

// qualify names a declaration made in s.
func (s scope) qualify(name string) string {
	if p := s.prefix(); p != "" {
		return p + "::" + name
	}
	return name
}

// enter returns the scope of a namespace or class body named name.
func (s scope) enter(name string) scope {
	out := s
	out.prefixes = append(append([]string(nil), s.prefixes...), name)
	out.class = ""
	out.access = ""
	return out
}

func (s scope) enterClass(name, access string) scope {
	out := s.enter(name)
	out.class = name
	out.access = access
	return out
}

func (s scope) withParams(params []graph.TemplateParam) scope {
	if len(params) == 0 {
		return s
	}
	out := s
	out.params = make(map[string]bool, len(s.params)+len(params))
	for name := range s.params {
		out.params[name] = true
	}
	for _, p := range params {
		if p.Name != "" {
			out.params[p.Name] = true
		}
	}
	return out
}

// funcInfo is a function the walk has seen.
type funcInfo struct {
	ref     graph.FunctionRef
	short   string // Unqualified name
	key     string // Return, parameters and constness
	minArgs int
	maxArgs int // -1 when variadic
	virtual bool
	static  bool
	access  string
}

func (f *funcInfo) accepts(args int) bool {
	return args >= f.minArgs && (f.maxArgs < 0 || args <= f.maxArgs)
}

func (f *funcInfo) sameParams(o *funcInfo) bool {
	return f.short == o.short && paramKey(f.ref) == paramKey(o.ref)
}

func paramKey(ref graph.FunctionRef) string {
	parts := make([]string, len(ref.Params))
	for i, p := range ref.Params {
		parts[i] = compact(p.Spelling)
	}
	key := strings.Join(parts, ",")
	if ref.Const {
		key += " const"
	}
	return key
}

type classInfo struct {
	bases   []string
	params  []graph.TemplateParam
	methods []*funcInfo
}

// symbols is what the parsed files declare. Type names are collected from
// every file before any event is emitted; functions and classes are added
// as the walk reaches them, mirroring declare-before-use.
type symbols struct {
	types   map[string]bool
	classes map[string]*classInfo
	funcs   map[string][]*funcInfo
}

func newSymbols() *symbols {
	return &symbols{
		types:   make(map[string]bool),
		classes: make(map[string]*classInfo),
		funcs:   make(map[string][]*funcInfo),
	}
}

// collectTypes records the qualified names of records, enums and aliases
// under node.
func (s *symbols) collectTypes(node *sitter.Node, source []byte, sc scope) {
	for _, c := range children(node) {
		switch c.Kind() {
		case "namespace_definition":
			inner := sc
			if name := c.ChildByFieldName("name"); name != nil {
				inner = sc.enter(sc.qualify(compact(extractNodeText(name, source))))
			}
			s.collectTypes(c.ChildByFieldName("body"), source, inner)
		case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
			name := c.ChildByFieldName("name")
			if name == nil {
				continue
			}
			qualified := sc.qualify(compact(extractNodeText(name, source)))
			s.types[qualified] = true
			if body := c.ChildByFieldName("body"); body != nil && c.Kind() != "enum_specifier" {
				s.collectTypes(body, source, sc.enter(qualified))
			}
		case "type_definition":
			s.collectTypes(c, source, sc)
			for _, d := range fieldChildren(c, "declarator") {
				if _, name := declaratorLayers(d, source); name != nil {
					s.types[sc.qualify(extractNodeText(name, source))] = true
				}
			}
		case "alias_declaration":
			if name := c.ChildByFieldName("name"); name != nil {
				s.types[sc.qualify(extractNodeText(name, source))] = true
			}
		case "compound_statement", "function_definition", "parameter_list":
		default:
			s.collectTypes(c, source, sc)
		}
	}
}

// resolveType qualifies a type name used in sc: the innermost enclosing
// scope that declares it wins. Unknown names are returned as written.
func (s *symbols) resolveType(sc scope, name string) string {
	if sc.params[name] {
		return name
	}
	for i := len(sc.prefixes) - 1; i >= 0; i-- {
		if q := sc.prefixes[i] + "::" + name; s.types[q] {
			return q
		}
	}
	return name
}

// resolveClass is resolveType restricted to classes the walk has entered.
func (s *symbols) resolveClass(sc scope, name string) (string, *classInfo) {
	for i := len(sc.prefixes) - 1; i >= 0; i-- {
		q := sc.prefixes[i] + "::" + name
		if info := s.classes[q]; info != nil {
			return q, info
		}
	}
	return name, s.classes[name]
}

func (s *symbols) class(name string) *classInfo {
	info := s.classes[name]
	if info == nil {
		info = &classInfo{}
		s.classes[name] = info
	}
	return info
}

// addFunc registers fn under its qualified name, merging repeated
// declarations of the same signature.
func (s *symbols) addFunc(fn *funcInfo) *funcInfo {
	for _, f := range s.funcs[fn.ref.Name] {
		if f.key == fn.key {
			f.virtual = f.virtual || fn.virtual
			f.static = f.static || fn.static
			if f.access == "" {
				f.access = fn.access
			}
			return f
		}
	}
	s.funcs[fn.ref.Name] = append(s.funcs[fn.ref.Name], fn)
	if fn.ref.Class != "" {
		info := s.class(fn.ref.Class)
		info.methods = append(info.methods, fn)
	}
	return fn
}

// lookupFuncs finds the functions a name used in sc refers to.
func (s *symbols) lookupFuncs(sc scope, name string) []*funcInfo {
	if strings.HasPrefix(name, "::") {
		return s.funcs[name[2:]]
	}
	for i := len(sc.prefixes) - 1; i >= 0; i-- {
		if fs := s.funcs[sc.prefixes[i]+"::"+name]; len(fs) > 0 {
			return fs
		}
	}
	return s.funcs[name]
}

// methodsNamed finds methods called short in any class.
func (s *symbols) methodsNamed(short string) []*funcInfo {
	var out []*funcInfo
	for _, info := range s.classes {
		for _, m := range info.methods {
			if m.short == short {
				out = append(out, m)
			}
		}
	}
	return out
}

// overridden finds the virtual methods fn overrides: the nearest match on
// each inheritance path.
func (s *symbols) overridden(class string, fn *funcInfo) []graph.FunctionRef {
	info := s.classes[class]
	if info == nil {
		return nil
	}
	var out []graph.FunctionRef
	seen := map[string]bool{class: true}
	queue := append([]string(nil), info.bases...)
	for len(queue) > 0 {
		base := queue[0]
		queue = queue[1:]
		if seen[base] {
			continue
		}
		seen[base] = true
		info := s.classes[base]
		if info == nil {
			continue
		}
		var match *funcInfo
		for _, m := range info.methods {
			if m.virtual && m.sameParams(fn) {
				match = m
				break
			}
		}
		if match != nil {
			out = append(out, match.ref)
			continue
		}
		queue = append(queue, info.bases...)
	}
	return out
}
