// Package hover provides functionality for generating hover information.
package hover

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/position"
)

// HoverInfo represents the information to be displayed in a hover tooltip
type HoverInfo struct {
	// Content is the markdown content to display
	Content []string
	// Position is the span in the document that this hover applies to
	Position position.RawPosition
}

func codeBlock(line string) string {
	return "```lua\n" + line + "\n```"
}

// Describe returns a short markdown description of the binding under offset,
// or nil when there is nothing to describe.
func Describe(ctx context.Context, s *engine.Session, file *ast.File, offset int) *HoverInfo {
	if file == nil {
		return nil
	}

	for _, doc := range file.Imports() {
		if doc.Path != "" && offset >= doc.PathStart && offset <= doc.PathFinish {
			return describeImportPath(s, file, doc)
		}
	}

	n := ast.At(file.Root, offset)
	if n == nil {
		return nil
	}
	zerolog.Ctx(ctx).Trace().Str("kind", n.Kind.String()).Int("offset", offset).Msg("hover target")

	var content []string
	switch n.Kind {
	case ast.Local:
		content = describeLocal(n)
	case ast.GetLocal, ast.SetLocal:
		if n.Ref != nil {
			content = describeLocal(n.Ref)
		}
	case ast.GetGlobal, ast.SetGlobal:
		content = describeGlobal(ctx, s, file, n)
	case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
		content = describeField(ctx, s, n)
	}
	if len(content) == 0 {
		return nil
	}
	return &HoverInfo{Content: content, Position: file.NodePosition(n)}
}

func describeImportPath(s *engine.Session, file *ast.File, doc *ast.Doc) *HoverInfo {
	target, ok := s.ResolveImportPath(file.URI, doc.Path)
	text := fmt.Sprintf("cannot resolve `%s`", doc.Path)
	if ok {
		text = fmt.Sprintf("resolves to `%s`", target)
	}
	return &HoverInfo{
		Content:  []string{text},
		Position: file.Position(doc.PathStart, doc.PathFinish),
	}
}

func isParam(l *ast.Node) bool {
	p := l.Parent
	if p == nil {
		return false
	}
	for _, param := range p.Params {
		if param == l {
			return true
		}
	}
	return false
}

func describeLocal(l *ast.Node) []string {
	switch {
	case isParam(l):
		return []string{codeBlock("(parameter) " + l.Name)}
	case l.Value != nil && l.Value.Kind == ast.Function:
		return []string{codeBlock("local function " + l.Name + "()")}
	}
	line := "local " + l.Name
	if l.Attrib != "" {
		line += " <" + l.Attrib + ">"
	}
	return []string{codeBlock(line)}
}

func describeGlobal(ctx context.Context, s *engine.Session, file *ast.File, n *ast.Node) []string {
	defs := s.Globals(ctx, n.Name, file.URI, true)
	if len(defs) == 0 {
		return []string{codeBlock("global " + n.Name), "undefined global"}
	}

	g := defs[0]
	out := []string{codeBlock("global " + n.Name), engine.Origin(g)}
	switch {
	case g.IsImport() && g.Doc != nil:
		out[0] = codeBlock("---@import \"" + g.Doc.Path + "\" as " + g.Name)
		if target, ok := s.ResolveImportPath(g.URI, g.Doc.Path); ok {
			out = append(out, fmt.Sprintf("module `%s`", target))
		}
	case g.Kind == ast.Virtual:
		if b, ok := s.Tables().Lookup(g.Name); ok && b.Doc != "" {
			out = append(out, b.Doc)
		}
	}
	if len(defs) > 1 {
		out = append(out, fmt.Sprintf("%d definitions", len(defs)))
	}
	return out
}

func describeField(ctx context.Context, s *engine.Session, n *ast.Node) []string {
	if n.Node == nil || n.Name == "" {
		return nil
	}
	var origins []string
	found := false
	for _, f := range s.Fields(ctx, n.Node, 0, engine.FieldOptions{}) {
		if f.Name != n.Name {
			continue
		}
		found = true
		if f.FromImport {
			origins = append(origins, "imported from `"+f.URI+"`")
		}
	}
	if !found {
		return nil
	}
	sep := "."
	if n.Kind == ast.GetMethod || n.Kind == ast.SetMethod {
		sep = ":"
	}
	out := []string{codeBlock("(field) " + sep + n.Name)}
	if len(origins) > 0 {
		out = append(out, strings.Join(origins, "\n"))
	}
	return out
}
