package providers

import (
	"context"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/lexer"
)

// VariableProvider handles name completions: locals in scope, globals and
// keywords
type VariableProvider struct {
	session *engine.Session
}

// NewVariableProvider creates a new variable completion provider
func NewVariableProvider(session *engine.Session) *VariableProvider {
	return &VariableProvider{session: session}
}

// GetCompletions returns the names visible at offset in file.
func (p *VariableProvider) GetCompletions(ctx context.Context, file *ast.File, offset int) []CompletionItem {
	var completions []CompletionItem
	seen := map[string]bool{}

	locals := ast.VisibleLocals(file.Root, offset)
	// innermost declarations shadow outer ones
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.Name == "" || seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		kind := KindVariable
		if isFunction(l) {
			kind = KindFunction
		}
		completions = append(completions, CompletionItem{
			Label:    l.Name,
			Kind:     kind,
			Detail:   "local",
			SortText: sortText(groupLocal, l.Name),
		})
	}

	for _, g := range p.session.Globals(ctx, engine.Wildcard, file.URI, false) {
		if g.Name == "" || seen[g.Name] {
			continue
		}
		// the partial name being typed parses as a read of itself
		if g.Kind == ast.GetGlobal && g.File == file && g.Start == offset {
			continue
		}
		seen[g.Name] = true
		item := CompletionItem{
			Label:    g.Name,
			Kind:     KindVariable,
			Detail:   engine.Origin(g),
			SortText: sortText(groupGlobal, g.Name),
		}
		switch {
		case g.IsImport():
			item.Kind = KindModule
			if g.Doc != nil {
				item.Documentation = "---@import " + g.Doc.Path
			}
		case isFunction(g):
			item.Kind = KindFunction
		case g.Kind == ast.Virtual:
			if b, ok := p.session.Tables().Lookup(g.Name); ok {
				item.Documentation = b.Doc
				if b.Kind == "function" {
					item.Kind = KindFunction
				}
			}
		}
		completions = append(completions, item)
	}

	for _, kw := range lexer.Keywords() {
		completions = append(completions, CompletionItem{
			Label:    kw,
			Kind:     KindKeyword,
			SortText: sortText(groupKeyword, kw),
		})
	}
	return completions
}
