package providers

import (
	"context"
	"sort"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/engine"
)

// CompletionItem represents a single completion suggestion
type CompletionItem struct {
	Label         string   `json:"label"`
	Kind          ItemKind `json:"kind"`
	Detail        string   `json:"detail,omitempty"`
	Documentation string   `json:"documentation,omitempty"`
	SortText      string   `json:"sortText,omitempty"`
}

// ItemKind classifies a suggestion.
type ItemKind string

const (
	KindField    ItemKind = "field"
	KindMethod   ItemKind = "method"
	KindFunction ItemKind = "function"
	KindVariable ItemKind = "variable"
	KindModule   ItemKind = "module"
	KindKeyword  ItemKind = "keyword"
)

// sort groups; items sort by group then label
const (
	groupLocal    = "0"
	groupGlobal   = "1"
	groupImported = "2"
	groupKeyword  = "3"
)

func sortText(group, label string) string {
	return group + "_" + label
}

func isFunction(n *ast.Node) bool {
	if n == nil {
		return false
	}
	v := ast.Unparen(n.Value)
	return v != nil && v.Kind == ast.Function
}

// FieldProvider handles member completions after `.` and `:`
type FieldProvider struct {
	session *engine.Session
}

// NewFieldProvider creates a new field completion provider
func NewFieldProvider(session *engine.Session) *FieldProvider {
	return &FieldProvider{session: session}
}

// GetCompletions returns the fields of receiver. Fields contributed by an
// imported module sort after the ones defined locally.
func (p *FieldProvider) GetCompletions(ctx context.Context, receiver *ast.Node, methods bool) []CompletionItem {
	fields := p.session.Fields(ctx, receiver, 0, engine.FieldOptions{})

	seen := map[string]bool{}
	completions := make([]CompletionItem, 0, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		fn := isFunction(f.Node) || f.Node.Kind == ast.SetMethod
		if methods && !fn && f.Node.Kind != ast.Virtual {
			continue
		}
		seen[f.Name] = true

		item := CompletionItem{Label: f.Name, Kind: KindField, Detail: "field"}
		if fn {
			item.Kind = KindMethod
		}
		group := groupLocal
		if f.FromImport {
			group = groupImported
			item.Detail = "imported field"
			item.Documentation = "from " + f.URI
		}
		item.SortText = sortText(group, f.Name)
		completions = append(completions, item)
	}

	sort.SliceStable(completions, func(i, j int) bool {
		return completions[i].SortText < completions[j].SortText
	})
	return completions
}
