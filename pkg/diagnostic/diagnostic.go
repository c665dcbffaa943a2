// Package diagnostic reports syntax errors, reads of undefined globals and
// import annotations that do not resolve.
package diagnostic

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/position"
)

// Severity mirrors the LSP DiagnosticSeverity values.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return "unknown"
}

// Diagnostic codes.
const (
	CodeSyntax            = "syntax-error"
	CodeUndefinedGlobal   = "undefined-global"
	CodeInvalidImportPath = "invalid-import-path"
)

// Diagnostic represents a single diagnostic message
type Diagnostic struct {
	Message  string
	Code     string
	Location position.RawPosition
	Severity Severity
}

// Check runs every diagnostic over file and returns them ordered by offset.
func Check(ctx context.Context, s *engine.Session, file *ast.File) []*Diagnostic {
	if file == nil {
		return nil
	}

	var out []*Diagnostic
	out = append(out, syntaxErrors(file)...)
	out = append(out, invalidImports(s, file)...)
	out = append(out, undefinedGlobals(ctx, s, file)...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location.Offset < out[j].Location.Offset
	})

	zerolog.Ctx(ctx).Debug().Str("uri", file.URI).Int("count", len(out)).Msg("diagnostics computed")
	return out
}

func syntaxErrors(file *ast.File) []*Diagnostic {
	out := make([]*Diagnostic, 0, len(file.Errors))
	for _, e := range file.Errors {
		out = append(out, &Diagnostic{
			Message:  e.Expected,
			Code:     CodeSyntax,
			Location: file.Position(e.Offset, e.Finish),
			Severity: SeverityError,
		})
	}
	return out
}

func invalidImports(s *engine.Session, file *ast.File) []*Diagnostic {
	var out []*Diagnostic
	for _, doc := range file.Imports() {
		if doc.Path == "" {
			out = append(out, &Diagnostic{
				Message:  "import annotation has no path",
				Code:     CodeInvalidImportPath,
				Location: file.Position(doc.Start, doc.Finish),
				Severity: SeverityWarning,
			})
			continue
		}
		if _, ok := s.ResolveImportPath(file.URI, doc.Path); !ok {
			out = append(out, &Diagnostic{
				Message:  fmt.Sprintf("cannot resolve import path %q", doc.Path),
				Code:     CodeInvalidImportPath,
				Location: file.Position(doc.PathStart, doc.PathFinish),
				Severity: SeverityWarning,
			})
		}
	}
	for _, dl := range engine.DynamicLoads(file) {
		if _, ok := s.ResolveImportPath(file.URI, dl.Path); !ok {
			out = append(out, &Diagnostic{
				Message:  fmt.Sprintf("cannot resolve loaded file %q", dl.Path),
				Code:     CodeInvalidImportPath,
				Location: file.NodePosition(dl.Literal),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}

// undefinedGlobals flags reads of globals that no source defines: not the
// runtime, the configuration, an import, a dynamic load or an assignment.
func undefinedGlobals(ctx context.Context, s *engine.Session, file *ast.File) []*Diagnostic {
	defined := map[string]bool{}
	var out []*Diagnostic
	ast.Walk(file.Root, func(n *ast.Node) bool {
		if n.Kind != ast.GetGlobal {
			return true
		}
		ok, seen := defined[n.Name]
		if !seen {
			ok = len(s.Globals(ctx, n.Name, file.URI, true)) > 0
			defined[n.Name] = ok
		}
		if !ok {
			out = append(out, &Diagnostic{
				Message:  fmt.Sprintf("undefined global %q", n.Name),
				Code:     CodeUndefinedGlobal,
				Location: file.NodePosition(n),
				Severity: SeverityWarning,
			})
		}
		return true
	})
	return out
}
