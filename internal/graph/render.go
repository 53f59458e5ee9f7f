package graph

import (
	"encoding/json"
	"strings"
)

// Canonical is the identity-relevant decomposition of a type.
type Canonical struct {
	Name        string    // Canonical spelling, no cv-qualifiers anywhere
	Slot        int       // Template parameter index, -1 for ordinary types
	Indirection string    // One '*' or '&' per layer, in spelling order
	Bottom      *TypeExpr // First non-indirection layer
}

// Decompose splits e into its indirection layers and bottom type. Two
// expressions with the same Name and Slot denote the same type.
func Decompose(e *TypeExpr) Canonical {
	var ind string
	bottom := e
	for {
		switch {
		case bottom.Pointer != nil:
			ind = "*" + ind
		case bottom.LRef != nil:
			ind = "&" + ind
		case bottom.RRef != nil:
			ind = "&&" + ind
		default:
			slot := -1
			if bottom.Slot != nil {
				slot = *bottom.Slot
			}
			return Canonical{
				Name:        CanonicalName(e),
				Slot:        slot,
				Indirection: ind,
				Bottom:      bottom,
			}
		}
		bottom = bottom.Inner()
	}
}

// CanonicalName renders e without cv-qualifiers: "ns::Foo<int> **&".
func CanonicalName(e *TypeExpr) string {
	return render(e, false, false)
}

// Spell renders e with every cv-qualifier: "const ns::Foo *const".
func Spell(e *TypeExpr) string {
	return render(e, true, false)
}

// ParamSpelling renders a parameter type the way it contributes to a
// function signature: inner cv-qualifiers are kept, top-level ones are not
// part of the function type and are dropped.
func ParamSpelling(e *TypeExpr) string {
	return render(e, true, true)
}

// Signature renders the identity of a function:
// "ret ns::name(p1, p2) const".
func Signature(ret *TypeExpr, name string, params []*TypeExpr, isConst bool) string {
	var b strings.Builder
	if ret == nil {
		b.WriteString("void")
	} else {
		b.WriteString(CanonicalName(ret))
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ParamSpelling(p))
	}
	b.WriteByte(')')
	if isConst {
		b.WriteString(" const")
	}
	return b.String()
}

func render(e *TypeExpr, cv, dropTop bool) string {
	if e == nil {
		return ""
	}
	if inner := e.Inner(); inner != nil {
		s := render(inner, cv, false)
		if !strings.HasSuffix(s, "*") && !strings.HasSuffix(s, "&") {
			s += " "
		}
		switch {
		case e.Pointer != nil:
			s += "*"
		case e.LRef != nil:
			s += "&"
		default:
			s += "&&"
		}
		if cv && !dropTop {
			if e.Const {
				s += "const"
			}
			if e.Volatile {
				if e.Const {
					s += " "
				}
				s += "volatile"
			}
		}
		return s
	}

	var b strings.Builder
	if cv && !dropTop {
		if e.Const {
			b.WriteString("const ")
		}
		if e.Volatile {
			b.WriteString("volatile ")
		}
	}
	b.WriteString(e.Name)
	if e.Args != nil {
		b.WriteByte('<')
		b.WriteString(joinArgs(e.Args, cv))
		b.WriteByte('>')
	}
	return b.String()
}

func joinArgs(args []TypeArg, cv bool) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderArg(a, cv)
	}
	return strings.Join(parts, ", ")
}

func renderArg(a TypeArg, cv bool) string {
	switch a.Kind {
	case ArgType:
		return render(a.Type, cv, false)
	case ArgPack:
		return joinArgs(a.Pack, cv) + "..."
	default:
		return a.Value
	}
}

// ArgValue is the text stored for a template argument: the canonical name
// for types, JSON for expressions and packs, the literal text otherwise.
func ArgValue(a TypeArg) string {
	switch a.Kind {
	case ArgType:
		if a.Type == nil {
			return ""
		}
		return CanonicalName(a.Type)
	case ArgExpression:
		return ExprJSON(a.Value)
	case ArgPack:
		values := make([]string, len(a.Pack))
		for i, p := range a.Pack {
			values[i] = ArgValue(p)
		}
		data, _ := json.Marshal(values)
		return string(data)
	default:
		return a.Value
	}
}

// ExprJSON renders expression text as the JSON stored for expression
// arguments and non-type template parameter defaults.
func ExprJSON(text string) string {
	data, _ := json.Marshal(struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}{"expression", text})
	return string(data)
}

// Nesting returns how deeply template arguments nest inside e.
func Nesting(e *TypeExpr) int {
	if e == nil {
		return 0
	}
	for e.Inner() != nil {
		e = e.Inner()
	}
	deepest := 0
	var visit func(args []TypeArg)
	visit = func(args []TypeArg) {
		for _, a := range args {
			if d := Nesting(a.Type); d > deepest {
				deepest = d
			}
			visit(a.Pack)
		}
	}
	if len(e.Args) == 0 {
		return 0
	}
	visit(e.Args)
	return deepest + 1
}

// Unqualified strips the namespace and class qualifiers from a name,
// ignoring "::" inside template arguments.
func Unqualified(name string) string {
	depth := 0
	cut := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				cut = i + 2
				i++
			}
		}
	}
	return name[cut:]
}
