package library

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParsePlaylist reads a markdown document and returns the playable files it
// names, in order, either as link targets or as plain list items. Relative
// paths are resolved against base.
func ParsePlaylist(src []byte, base string) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.Trim(strings.TrimSpace(p), "`")
		if p == "" || !Match(p) {
			return
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, filepath.FromSlash(p))
		}
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Link:
			add(string(n.Destination))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if hasLink(n) {
				return ast.WalkContinue, nil
			}
			if block := n.FirstChild(); block != nil {
				add(lineText(block, src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return paths
}

func hasLink(n ast.Node) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && c.Kind() == ast.KindLink {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func lineText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}
