// Package frontend turns C++ sources into builder events using tree-sitter.
//
// It is a syntactic front-end: names are qualified by the namespaces and
// classes that enclose them, and references are resolved only against what
// the parsed files themselves declare. Macros are not expanded and headers
// are not followed; pass every file that should be indexed.
package frontend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/typefind/internal/graph"
)

// CPP parses C++ files.
type CPP struct {
	language *sitter.Language
	workers  int
	log      *logrus.Logger
}

// NewCPP creates a front-end that parses up to workers files at once.
func NewCPP(log *logrus.Logger, workers int) *CPP {
	if workers < 1 {
		workers = 1
	}
	return &CPP{
		language: newLanguage(),
		workers:  workers,
		log:      log,
	}
}

// unit is one parsed file, kept until its events are emitted.
type unit struct {
	path   string
	source []byte
	tree   *sitter.Tree
}

// Parse reads and parses paths concurrently. The returned source yields the
// files' events in argument order, each file in source order. It must be
// closed.
func (p *CPP) Parse(ctx context.Context, paths []string) (*Source, error) {
	units := make([]*unit, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := p.parseFile(path)
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, u := range units {
			if u != nil {
				u.tree.Close()
			}
		}
		return nil, err
	}

	syms := newSymbols()
	for _, u := range units {
		syms.collectTypes(u.tree.RootNode(), u.source, scope{})
	}
	p.log.WithFields(logrus.Fields{
		"files": len(units),
		"types": len(syms.types),
	}).Debug("parsed sources")

	return &Source{units: units, syms: syms, log: p.log}, nil
}

func (p *CPP) parseFile(path string) (*unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("failed to load C++ grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", abs)
	}
	if tree.RootNode().HasError() {
		p.log.WithField("path", abs).Warn("syntax errors; declarations near them may be missing")
	}
	return &unit{path: abs, source: source, tree: tree}, nil
}

// Source yields the events of parsed files. It is not safe for concurrent
// use.
type Source struct {
	units   []*unit
	syms    *symbols
	log     *logrus.Logger
	pending []*graph.Event
}

func (s *Source) Next() (*graph.Event, error) {
	for len(s.pending) == 0 {
		if len(s.units) == 0 {
			return nil, io.EOF
		}
		u := s.units[0]
		s.units = s.units[1:]
		s.pending = newWalker(u, s.syms).run()
		u.tree.Close()
		s.log.WithFields(logrus.Fields{"path": u.path, "events": len(s.pending)}).Debug("file walked")
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

// Close releases the trees of files not yet emitted.
func (s *Source) Close() error {
	for _, u := range s.units {
		u.tree.Close()
	}
	s.units = nil
	s.pending = nil
	return nil
}
