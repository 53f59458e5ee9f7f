package storage

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

// Hierarchy maintains decl_base and its transitive closure decl_tree.
//
// The closure is extended at insert time from the parent's existing rows,
// so a parent's own bases must be recorded before it is used as a base.
// Front-ends that visit classes in source order satisfy this; anything
// else leaves the closure incomplete, which AuditClosure detects.
type Hierarchy struct {
	gw  *Gateway
	log *logrus.Logger
}

// BaseEdge is one direct inheritance edge.
type BaseEdge struct {
	Child     int64
	Parent    int64
	Position  int
	Access    string
	IsVirtual bool
}

// AddBaseEdge records child inheriting from parent and extends the closure
// with (child, parent, 1) and (child, ancestor, level+1) for every closure
// row of parent.
func (h *Hierarchy) AddBaseEdge(e BaseEdge) error {
	if e.Child == e.Parent {
		h.log.WithField("decl_id", e.Child).Debug("skipping self inheritance")
		return nil
	}

	base := Insert("decl_base").
		Set("decl_id", Int64(e.Child)).
		Set("base_id", Int64(e.Parent)).
		Set("position", Int(e.Position)).
		Set("access", Text(e.Access)).
		Set("is_virtual", Bool(e.IsVirtual)).
		OrIgnore()
	if _, _, err := h.gw.Insert(base); err != nil {
		return err
	}

	if err := h.insertTreeRow(e.Child, e.Parent, 1); err != nil {
		return err
	}

	inherited := sq.Insert("decl_tree").
		Options("OR IGNORE").
		Columns("decl_id", "ancestor_id", "level").
		Select(sq.Select().
			Column(sq.Expr("?", e.Child)).
			Column("ancestor_id").
			Column("level + 1").
			From("decl_tree").
			Where(sq.Eq{"decl_id": e.Parent}).
			OrderBy("id"))
	_, err := h.gw.Exec(rawStmt{op: "insert", table: "decl_tree", Sqlizer: inherited})
	return err
}

// Repair inserts closure rows reported missing by an audit.
func (h *Hierarchy) Repair(missing []TreeRow) (int, error) {
	n := 0
	for _, row := range missing {
		s := Insert("decl_tree").
			Set("decl_id", Int64(row.DeclID)).
			Set("ancestor_id", Int64(row.AncestorID)).
			Set("level", Int(row.Level)).
			OrIgnore()
		_, inserted, err := h.gw.Insert(s)
		if err != nil {
			return n, err
		}
		if inserted {
			n++
		}
	}
	h.log.WithField("rows", n).Info("closure repaired")
	return n, nil
}

func (h *Hierarchy) insertTreeRow(decl, ancestor int64, level int) error {
	s := Insert("decl_tree").
		Set("decl_id", Int64(decl)).
		Set("ancestor_id", Int64(ancestor)).
		Set("level", Int(level)).
		OrIgnore()
	_, _, err := h.gw.Insert(s)
	return err
}
