// Package definition answers go-to-definition queries.
package definition

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/position"
)

// Location is a span in a file.
type Location struct {
	URI      string
	Position position.RawPosition
}

// fileStart points at the top of a file.
func fileStart(u string) Location {
	return Location{URI: u, Position: position.NewBasicPosition("", 0)}
}

func nodeLocation(n *ast.Node) (Location, bool) {
	if n.File == nil {
		return Location{}, false
	}
	return Location{URI: n.File.URI, Position: n.File.NodePosition(n)}, true
}

// Find returns the definitions of whatever is under offset in file: the
// declaring local, the assignments of a global (here and in imported files),
// the module behind an import alias, the members behind a field access or
// the file an `---@import` path names.
func Find(ctx context.Context, s *engine.Session, file *ast.File, offset int) []Location {
	if file == nil {
		return nil
	}

	for _, doc := range file.Imports() {
		if doc.Path == "" || offset < doc.PathStart || offset > doc.PathFinish {
			continue
		}
		if target, ok := s.ResolveImportPath(file.URI, doc.Path); ok {
			return []Location{fileStart(target)}
		}
		return nil
	}

	n := ast.At(file.Root, offset)
	if n == nil {
		return nil
	}
	zerolog.Ctx(ctx).Trace().Str("kind", n.Kind.String()).Int("offset", offset).Msg("definition target")

	switch n.Kind {
	case ast.Local:
		return locations(n)
	case ast.GetLocal, ast.SetLocal:
		if n.Ref != nil {
			return locations(n.Ref)
		}
	case ast.GetGlobal, ast.SetGlobal:
		return globalDefinitions(ctx, s, file, n)
	case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
		return memberDefinitions(ctx, s, n)
	case ast.String:
		if n.Parent == nil {
			break
		}
		if lit, ok := engine.MatchDynamicLoad(n.Parent.Parent); ok && lit == n {
			if target, ok := s.ResolveImportPath(file.URI, n.Literal); ok {
				return []Location{fileStart(target)}
			}
		}
	}
	return nil
}

func locations(nodes ...*ast.Node) []Location {
	var out []Location
	for _, n := range nodes {
		if loc, ok := nodeLocation(n); ok {
			out = append(out, loc)
		}
	}
	return out
}

func globalDefinitions(ctx context.Context, s *engine.Session, file *ast.File, n *ast.Node) []Location {
	var out []Location
	for _, g := range s.Globals(ctx, n.Name, file.URI, true) {
		switch {
		case g.IsImport():
			if g.Doc == nil {
				continue
			}
			if target, ok := s.ResolveImportPath(g.URI, g.Doc.Path); ok {
				out = append(out, fileStart(target))
			}
		case g.Kind == ast.SetGlobal:
			out = append(out, locations(g)...)
		}
	}
	return out
}

func memberDefinitions(ctx context.Context, s *engine.Session, n *ast.Node) []Location {
	if n.Node == nil || n.Name == "" {
		return nil
	}
	var out []Location
	for _, f := range s.Fields(ctx, n.Node, 0, engine.FieldOptions{}) {
		if f.Name == n.Name {
			out = append(out, locations(f.Node)...)
		}
	}
	return out
}
