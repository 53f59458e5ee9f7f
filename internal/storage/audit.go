package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// ClosureReport is the result of comparing decl_tree with the closure that
// decl_base implies.
type ClosureReport struct {
	Edges    int
	Rows     int
	Missing  []TreeRow
	Extra    []TreeRow
	Cycles   [][]int64
	Complete bool
}

// AuditClosure recomputes the closure from decl_base and compares it with
// decl_tree. The expected rows are every (descendant, ancestor, level) for
// every path length, which is what in-order insertion produces.
//
// Inheritance cycles make the closure infinite; they are reported and the
// row comparison is skipped.
func AuditClosure(ctx context.Context, r *Reader) (*ClosureReport, error) {
	bases, err := r.Bases(ctx, 0)
	if err != nil {
		return nil, err
	}
	rows, err := r.Closure(ctx, 0)
	if err != nil {
		return nil, err
	}

	report := &ClosureReport{Edges: len(bases), Rows: len(rows)}

	g := graph.New(func(id int64) int64 { return id }, graph.Directed())
	for _, b := range bases {
		for _, id := range []int64{b.DeclID, b.BaseID} {
			if err := g.AddVertex(id); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("failed to add decl %d: %w", id, err)
			}
		}
		if b.DeclID == b.BaseID {
			report.Cycles = append(report.Cycles, []int64{b.DeclID})
			continue
		}
		if err := g.AddEdge(b.DeclID, b.BaseID); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("failed to add edge %d -> %d: %w", b.DeclID, b.BaseID, err)
		}
	}

	if _, err := graph.TopologicalSort(g); err != nil {
		components, sccErr := graph.StronglyConnectedComponents(g)
		if sccErr != nil {
			return nil, fmt.Errorf("failed to find inheritance cycles: %w", sccErr)
		}
		for _, c := range components {
			if len(c) > 1 {
				sort.Slice(c, func(i, j int) bool { return c[i] < c[j] })
				report.Cycles = append(report.Cycles, c)
			}
		}
	}
	if len(report.Cycles) > 0 {
		return report, nil
	}

	parents, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read inheritance graph: %w", err)
	}

	memo := make(map[int64]map[TreeRow]struct{})
	var paths func(id int64) map[TreeRow]struct{}
	paths = func(id int64) map[TreeRow]struct{} {
		if p, ok := memo[id]; ok {
			return p
		}
		out := make(map[TreeRow]struct{})
		for parent := range parents[id] {
			out[TreeRow{DeclID: id, AncestorID: parent, Level: 1}] = struct{}{}
			for row := range paths(parent) {
				out[TreeRow{DeclID: id, AncestorID: row.AncestorID, Level: row.Level + 1}] = struct{}{}
			}
		}
		memo[id] = out
		return out
	}

	expected := make(map[TreeRow]struct{})
	for id := range parents {
		for row := range paths(id) {
			expected[row] = struct{}{}
		}
	}

	actual := make(map[TreeRow]struct{}, len(rows))
	for _, row := range rows {
		actual[row] = struct{}{}
		if _, ok := expected[row]; !ok {
			report.Extra = append(report.Extra, row)
		}
	}
	for row := range expected {
		if _, ok := actual[row]; !ok {
			report.Missing = append(report.Missing, row)
		}
	}
	sortTreeRows(report.Missing)
	sortTreeRows(report.Extra)

	report.Complete = len(report.Missing) == 0 && len(report.Extra) == 0
	return report, nil
}

func sortTreeRows(rows []TreeRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.DeclID != b.DeclID {
			return a.DeclID < b.DeclID
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.AncestorID < b.AncestorID
	})
}
