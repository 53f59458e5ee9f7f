package graph

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mvp-joe/typefind/internal/storage"
)

// ErrSpelling means a type spelling could not be parsed. Callers fall back
// to treating the whole spelling as an opaque type name.
var ErrSpelling = errors.New("unsupported type spelling")

// ScopeParam is a template parameter visible while parsing a spelling.
type ScopeParam struct {
	Index int
	Kind  string
}

// Scope maps template parameter names to their slot.
type Scope map[string]ScopeParam

// With returns a new scope where params shadow the parameters of s.
func (s Scope) With(params []TemplateParam) Scope {
	if len(params) == 0 {
		return s
	}
	out := make(Scope, len(s)+len(params))
	for name, p := range s {
		out[name] = p
	}
	for i, p := range params {
		if p.Name != "" {
			out[p.Name] = ScopeParam{Index: i, Kind: p.Kind}
		}
	}
	return out
}

var builtinWords = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true, "char8_t": true,
	"char16_t": true, "char32_t": true, "short": true, "int": true, "long": true,
	"signed": true, "unsigned": true, "float": true, "double": true, "auto": true,
	"__int128": true,
}

var tagWords = map[string]bool{"class": true, "struct": true, "union": true, "enum": true}

// IsBuiltin reports whether name is a fundamental type spelling such as
// "unsigned long".
func IsBuiltin(name string) bool {
	for _, w := range strings.Fields(name) {
		if !builtinWords[w] {
			return false
		}
	}
	return name != ""
}

// ParseType parses a C++ type spelling such as "const ns::Foo<int, T*> *&"
// into a structured expression. Whitespace is insignificant. Identifiers
// found in scope become template parameter uses.
func ParseType(text string, scope Scope) (*TypeExpr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, scope: scope, text: text}
	e, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrSpelling, p.peek().text, text)
	}
	return e, nil
}

// Opaque returns a bottom type named by the normalized spelling. It is the
// fallback for spellings ParseType does not support, such as function
// pointers.
func Opaque(text string) *TypeExpr {
	return &TypeExpr{Name: strings.Join(strings.Fields(text), " ")}
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '_' || unicode.IsLetter(c):
			j := i + 1
			for j < len(s) && (s[j] == '_' || isAlnum(s[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		case unicode.IsDigit(c):
			j := i + 1
			for j < len(s) && (isAlnum(s[j]) || s[j] == '.' || s[j] == '\'') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		case strings.HasPrefix(s[i:], "::"), strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, token{tokPunct, s[i : i+2]})
			i += 2
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, token{tokPunct, "..."})
			i += 3
		case strings.ContainsRune("*&<>,()[]+-/%|^!~=?:.", c):
			toks = append(toks, token{tokPunct, string(c)})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %q", ErrSpelling, c, s)
		}
	}
	return toks, nil
}

func isAlnum(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

type parser struct {
	toks  []token
	pos   int
	scope Scope
	text  string
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind != tokEOF && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrSpelling, fmt.Sprintf(format, args...), p.text)
}

// qualifiers consumes const and volatile in any order.
func (p *parser) qualifiers(isConst, isVolatile *bool) {
	for {
		switch {
		case p.accept("const"):
			*isConst = true
		case p.accept("volatile"):
			*isVolatile = true
		default:
			return
		}
	}
}

func (p *parser) parseType() (*TypeExpr, error) {
	var isConst, isVolatile bool
	p.qualifiers(&isConst, &isVolatile)

	t, err := p.parseBottom()
	if err != nil {
		return nil, err
	}
	p.qualifiers(&isConst, &isVolatile)
	t.Const = t.Const || isConst
	t.Volatile = t.Volatile || isVolatile

	for {
		switch {
		case p.accept("*"):
			ptr := &TypeExpr{Pointer: t}
			p.qualifiers(&ptr.Const, &ptr.Volatile)
			t = ptr
		case p.accept("&"):
			t = &TypeExpr{LRef: t}
		case p.accept("&&"):
			t = &TypeExpr{RRef: t}
		default:
			return t, nil
		}
	}
}

func (p *parser) parseBottom() (*TypeExpr, error) {
	t := &TypeExpr{}
	if tok := p.peek(); tok.kind == tokIdent && tagWords[tok.text] {
		p.next()
		t.Kind = tok.text
		p.accept("class") // enum class
	}
	p.accept("typename")

	if tok := p.peek(); tok.kind == tokIdent && builtinWords[tok.text] {
		var words []string
		for {
			tok := p.peek()
			if tok.kind != tokIdent || !builtinWords[tok.text] {
				break
			}
			words = append(words, p.next().text)
			// "unsigned const int" is legal; keep the qualifier for the caller.
			var c, v bool
			p.qualifiers(&c, &v)
			t.Const = t.Const || c
			t.Volatile = t.Volatile || v
		}
		t.Name = strings.Join(words, " ")
		return t, nil
	}

	p.accept("::")
	var parts []string
	for {
		tok := p.next()
		if tok.kind != tokIdent {
			if tok.kind == tokEOF {
				return nil, p.errorf("missing type name")
			}
			return nil, p.errorf("unexpected %q", tok.text)
		}
		if tok.text == "decltype" || tok.text == "typeof" {
			return nil, p.errorf("%s is not supported", tok.text)
		}
		part := tok.text
		var args []TypeArg
		if p.accept("<") {
			var err error
			if args, err = p.parseArgs(); err != nil {
				return nil, err
			}
		}
		if !p.accept("::") {
			parts = append(parts, part)
			t.Args = args
			break
		}
		// Arguments of an enclosing scope are part of the name.
		if args != nil {
			part += "<" + joinArgs(args, false) + ">"
		}
		parts = append(parts, part)
		p.accept("template")
	}
	t.Name = strings.Join(parts, "::")

	if len(parts) == 1 {
		if sp, ok := p.scope[t.Name]; ok && sp.Kind != storage.ParamNonType {
			if sp.Kind == storage.ParamType || t.Args == nil {
				slot := sp.Index
				t.Slot = &slot
			}
		}
	}
	if p.peek().text == "(" {
		return nil, p.errorf("function types are not supported")
	}
	return t, nil
}

// parseArgs parses a template argument list after "<" up to its ">".
func (p *parser) parseArgs() ([]TypeArg, error) {
	args := []TypeArg{}
	if p.accept(">") {
		return args, nil
	}
	for {
		start := p.pos
		depth := 0
	scan:
		for !p.done() {
			switch p.peek().text {
			case "<", "(", "[":
				depth++
			case ")", "]":
				depth--
			case ">":
				if depth == 0 {
					break scan
				}
				depth--
			case ",":
				if depth == 0 {
					break scan
				}
			}
			p.next()
		}
		if p.done() {
			return nil, p.errorf("unterminated template argument list")
		}
		arg, err := p.classifyArg(p.toks[start:p.pos])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.next().text == ">" {
			return args, nil
		}
	}
}

func (p *parser) classifyArg(toks []token) (TypeArg, error) {
	if len(toks) == 0 {
		return TypeArg{}, p.errorf("empty template argument")
	}
	if n := len(toks); toks[n-1].text == "..." {
		inner, err := p.classifyArg(toks[:n-1])
		if err != nil {
			return TypeArg{}, err
		}
		return TypeArg{Kind: ArgPack, Pack: []TypeArg{inner}}, nil
	}

	text := joinTokens(toks)
	if len(toks) == 1 || (len(toks) == 2 && toks[0].text == "-" && toks[1].kind == tokNumber) {
		last := toks[len(toks)-1]
		switch {
		case last.kind == tokNumber:
			return TypeArg{Kind: ArgIntegral, Value: text}, nil
		case last.text == "true" || last.text == "false":
			return TypeArg{Kind: ArgIntegral, Value: text}, nil
		case last.text == "nullptr":
			return TypeArg{Kind: ArgNullPtr, Value: text}, nil
		}
		if sp, ok := p.scope[last.text]; ok && len(toks) == 1 {
			switch sp.Kind {
			case storage.ParamNonType:
				return TypeArg{Kind: ArgExpression, Value: text}, nil
			case storage.ParamTemplate:
				return TypeArg{Kind: ArgTemplate, Value: text}, nil
			}
		}
	}

	sub := &parser{toks: toks, scope: p.scope, text: p.text}
	if t, err := sub.parseType(); err == nil && sub.done() {
		return TypeArg{Kind: ArgType, Type: t}, nil
	}
	return TypeArg{Kind: ArgExpression, Value: text}, nil
}

// joinTokens renders tokens with a space only between adjacent words.
func joinTokens(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && isWord(toks[i-1]) && isWord(t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

func isWord(t token) bool { return t.kind == tokIdent || t.kind == tokNumber }
