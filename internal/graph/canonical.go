package graph

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/typefind/internal/storage"
)

// ErrTemplateDepth means template arguments nest deeper than the configured
// bound. The type is skipped like a failed statement.
var ErrTemplateDepth = errors.New("template arguments nested too deeply")

// DefaultMaxTemplateDepth bounds template argument recursion.
const DefaultMaxTemplateDepth = 32

// Canonicalizer resolves type expressions to Type ids, creating the Type
// and its template arguments on first sight.
type Canonicalizer struct {
	resolver *storage.Resolver
	writer   *storage.Writer
	maxDepth int
}

// NewCanonicalizer creates a canonicalizer. maxDepth <= 0 uses
// DefaultMaxTemplateDepth.
func NewCanonicalizer(store *storage.Store, maxDepth int) *Canonicalizer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTemplateDepth
	}
	return &Canonicalizer{
		resolver: store.Resolver(),
		writer:   store.Writer(),
		maxDepth: maxDepth,
	}
}

// Resolve returns the Type id of e. A nil expression resolves to 0, which
// is written as NULL.
func (c *Canonicalizer) Resolve(e *TypeExpr) (int64, error) {
	if e == nil {
		return 0, nil
	}
	if depth := Nesting(e); depth > c.maxDepth {
		return 0, fmt.Errorf("%w: %d levels in %s", ErrTemplateDepth, depth, CanonicalName(e))
	}
	return c.resolve(e, 0)
}

func (c *Canonicalizer) resolve(e *TypeExpr, depth int) (int64, error) {
	if depth > c.maxDepth {
		return 0, fmt.Errorf("%w: %s", ErrTemplateDepth, CanonicalName(e))
	}

	canon := Decompose(e)
	id, created, err := c.resolver.Type(canon.Name, canon.Slot)
	if err != nil || !created {
		return id, err
	}

	kind, declName, err := c.classify(canon.Bottom)
	if err != nil {
		return 0, err
	}
	if err := c.writer.UpsertType(id, storage.TypeAttrs{
		Indirection: canon.Indirection,
		DeclName:    declName,
		DeclKind:    kind,
		Spelling:    Spell(e),
	}); err != nil {
		return 0, err
	}

	for i, arg := range canon.Bottom.Args {
		var nested int64
		if arg.Kind == ArgType && arg.Type != nil {
			nested, err = c.resolve(arg.Type, depth+1)
			if err != nil {
				if !errors.Is(err, storage.ErrStatement) {
					return id, err
				}
				// Keep the argument row without its back-reference.
				nested = 0
			}
		}
		row := storage.TypeArgumentRow{
			TemplateID: id,
			TypeID:     nested,
			Kind:       string(arg.Kind),
			Value:      ArgValue(arg),
			Index:      i,
		}
		if _, err := c.writer.InsertTypeArgument(row); err != nil && !errors.Is(err, storage.ErrStatement) {
			return id, err
		}
	}
	return id, nil
}

// classify finds the declaration a bottom type refers to.
func (c *Canonicalizer) classify(bottom *TypeExpr) (kind, declName string, err error) {
	if bottom.Slot != nil {
		return "", "", nil
	}
	switch bottom.Kind {
	case "class", "struct", "union", "enum", "typedef", "using":
		return bottom.Kind, bottom.Name, nil
	}
	if !IsBuiltin(bottom.Name) {
		kind, err := c.resolver.DeclKind(bottom.Name)
		if err != nil {
			return "", "", err
		}
		if kind != "" {
			return kind, bottom.Name, nil
		}
	}
	return "", Unqualified(bottom.Name), nil
}
