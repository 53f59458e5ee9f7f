package storage

// Test Plan for Hierarchy and Closure Audit:
// - A→B→C in traversal order yields (A,B,1), (A,C,2), (B,C,1)
// - Adding an unrelated edge leaves existing closure rows untouched
// - Re-adding an edge is a no-op (decl_base and decl_tree unchanged)
// - A diamond keeps the shared ancestor at every path length
// - Self inheritance is ignored
// - Out-of-order visitation (child edge before the parent's own base) leaves the
//   closure incomplete; AuditClosure reports the missing row and Repair fills it
// - AuditClosure reports unexpected rows and inheritance cycles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hierarchyFixture struct {
	t     *testing.T
	store *Store
	ids   map[string]int64
}

func newHierarchyFixture(t *testing.T, names ...string) *hierarchyFixture {
	t.Helper()
	s := NewTestStore(t)
	f := &hierarchyFixture{t: t, store: s, ids: make(map[string]int64)}
	for _, name := range names {
		id, _, err := s.Resolver().Decl(name)
		require.NoError(t, err)
		f.ids[name] = id
	}
	return f
}

// inherit records child : parent.
func (f *hierarchyFixture) inherit(child, parent string) {
	f.t.Helper()
	err := f.store.Hierarchy().AddBaseEdge(BaseEdge{Child: f.ids[child], Parent: f.ids[parent], Access: "public"})
	require.NoError(f.t, err)
}

func (f *hierarchyFixture) row(decl, ancestor string, level int) TreeRow {
	return TreeRow{DeclID: f.ids[decl], AncestorID: f.ids[ancestor], Level: level}
}

func (f *hierarchyFixture) closure() []TreeRow {
	f.t.Helper()
	rows, err := NewReader(f.store.DB()).Closure(context.Background(), 0)
	require.NoError(f.t, err)
	return rows
}

func (f *hierarchyFixture) audit() *ClosureReport {
	f.t.Helper()
	report, err := AuditClosure(context.Background(), NewReader(f.store.DB()))
	require.NoError(f.t, err)
	return report
}

func TestHierarchy_Chain(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B", "C")

	// Traversal order: C first, then B : C, then A : B.
	f.inherit("B", "C")
	f.inherit("A", "B")

	assert.ElementsMatch(t, []TreeRow{
		f.row("A", "B", 1),
		f.row("A", "C", 2),
		f.row("B", "C", 1),
	}, f.closure())
	assert.True(t, f.audit().Complete)
}

func TestHierarchy_UnrelatedEdge(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B", "C", "X", "Y")

	f.inherit("B", "C")
	f.inherit("A", "B")
	before := f.closure()

	f.inherit("X", "Y")

	after := f.closure()
	assert.Subset(t, after, before)
	assert.Len(t, after, len(before)+1)
	assert.Contains(t, after, f.row("X", "Y", 1))
}

func TestHierarchy_Idempotent(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B")

	f.inherit("A", "B")
	f.inherit("A", "B")

	bases, err := NewReader(f.store.DB()).Bases(context.Background(), f.ids["A"])
	require.NoError(t, err)
	assert.Len(t, bases, 1)
	assert.Len(t, f.closure(), 1)
}

func TestHierarchy_Diamond(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "Root", "Left", "Right", "Mid", "Leaf")

	// Leaf : Left, Mid ; Left : Root ; Mid : Right ; Right : Root
	f.inherit("Left", "Root")
	f.inherit("Right", "Root")
	f.inherit("Mid", "Right")
	f.inherit("Leaf", "Left")
	f.inherit("Leaf", "Mid")

	rows := f.closure()
	assert.Contains(t, rows, f.row("Leaf", "Root", 2))
	assert.Contains(t, rows, f.row("Leaf", "Root", 3), "the same ancestor is kept at every level")
	assert.True(t, f.audit().Complete)
}

func TestHierarchy_SelfEdge(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A")

	f.inherit("A", "A")

	assert.Empty(t, f.closure())
}

func TestHierarchy_OutOfOrderNeedsRepair(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B", "C")

	// A : B is recorded before B : C, so A never learns about C.
	f.inherit("A", "B")
	f.inherit("B", "C")

	assert.NotContains(t, f.closure(), f.row("A", "C", 2))

	report := f.audit()
	assert.False(t, report.Complete)
	assert.Equal(t, []TreeRow{f.row("A", "C", 2)}, report.Missing)
	assert.Empty(t, report.Extra)

	n, err := f.store.Hierarchy().Repair(report.Missing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Contains(t, f.closure(), f.row("A", "C", 2))
	assert.True(t, f.audit().Complete)
}

func TestAuditClosure_Extra(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B")

	_, err := f.store.DB().Exec("INSERT INTO decl_tree (decl_id, ancestor_id, level) VALUES (?, ?, 1)", f.ids["A"], f.ids["B"])
	require.NoError(t, err)

	report := f.audit()
	assert.False(t, report.Complete)
	assert.Equal(t, []TreeRow{f.row("A", "B", 1)}, report.Extra)
}

func TestAuditClosure_Cycle(t *testing.T) {
	t.Parallel()
	f := newHierarchyFixture(t, "A", "B")

	f.inherit("A", "B")
	f.inherit("B", "A")

	report := f.audit()
	require.Len(t, report.Cycles, 1)
	assert.ElementsMatch(t, []int64{f.ids["A"], f.ids["B"]}, report.Cycles[0])
	assert.False(t, report.Complete)
}
