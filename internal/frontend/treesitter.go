package frontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/mvp-joe/typefind/internal/graph"
)

func newLanguage() *sitter.Language {
	return sitter.NewLanguage(cpp.Language())
}

// walkTree visits node and its descendants depth first. fn returns false to
// skip a node's children.
func walkTree(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), fn)
	}
}

// children returns the direct children of node, named or not.
func children(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.ChildCount())
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// compact collapses runs of whitespace, which spellings may span lines.
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasChild(node *sitter.Node, kind string) bool {
	for _, c := range children(node) {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

func childText(node *sitter.Node, kind string, source []byte) []string {
	var out []string
	for _, c := range children(node) {
		if c.Kind() == kind {
			out = append(out, extractNodeText(c, source))
		}
	}
	return out
}

func location(path string, node *sitter.Node) graph.Location {
	start, end := node.StartPosition(), node.EndPosition()
	return graph.Location{
		File:        path,
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
	}
}

// precedingComment returns the comments directly above node, joined, and
// their first sentence.
func precedingComment(node *sitter.Node, source []byte) (raw, brief string) {
	var parts []string
	line := node.StartPosition().Row
	for prev := node.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
		if prev.EndPosition().Row+1 < line {
			break
		}
		parts = append(parts, extractNodeText(prev, source))
		line = prev.StartPosition().Row
	}
	if len(parts) == 0 {
		return "", ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	raw = strings.Join(parts, "\n")
	return raw, briefText(raw)
}

// briefText strips comment markers and keeps the first sentence of the first
// paragraph.
func briefText(raw string) string {
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"///<", "//!<", "///", "//!", "//", "/**<", "/**", "/*!", "/*"} {
			if strings.HasPrefix(line, marker) {
				line = line[len(marker):]
				break
			}
		}
		line = strings.TrimSuffix(strings.TrimSpace(line), "*/")
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line == "" {
			if len(words) > 0 {
				break
			}
			continue
		}
		words = append(words, strings.Fields(line)...)
	}
	text := strings.Join(words, " ")
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	return text
}
