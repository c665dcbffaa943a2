// Package completion suggests names at a cursor: members after `.` and `:`,
// otherwise locals in scope, globals and keywords.
package completion

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/completion/providers"
	"github.com/walteh/luals/pkg/engine"
)

// Complete returns the suggestions at offset in file, filtered by the partial
// identifier left of the cursor.
func Complete(ctx context.Context, s *engine.Session, file *ast.File, offset int) []providers.CompletionItem {
	if file == nil {
		return nil
	}
	cc := NewCompletionContext(file.Text, offset)
	if inComment(file, cc.Offset) {
		return nil
	}

	var items []providers.CompletionItem
	if cc.IsMemberCompletion() {
		receiver := Receiver(file, cc)
		if receiver == nil {
			zerolog.Ctx(ctx).Debug().Int("offset", offset).Msg("no receiver before member trigger")
			return nil
		}
		items = providers.NewFieldProvider(s).GetCompletions(ctx, receiver, cc.AfterColon)
	} else {
		items = providers.NewVariableProvider(s).GetCompletions(ctx, file, cc.PrefixStart())
	}

	return filterPrefix(items, cc.Prefix)
}

func filterPrefix(items []providers.CompletionItem, prefix string) []providers.CompletionItem {
	if prefix == "" {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if strings.HasPrefix(item.Label, prefix) {
			out = append(out, item)
		}
	}
	return out
}

func inComment(file *ast.File, offset int) bool {
	for _, c := range file.Comments {
		if offset > c.Start && offset <= c.End {
			// a line comment ends at the newline, which is not part of it
			return true
		}
	}
	return false
}

func isExpression(n *ast.Node) bool {
	switch n.Kind {
	case ast.GetLocal, ast.GetGlobal, ast.GetField, ast.GetMethod, ast.GetIndex,
		ast.Call, ast.Paren, ast.String, ast.Table:
		return true
	}
	return false
}

// Receiver finds the expression whose members are being completed: the base
// of the member access holding the partial name, or the outermost
// expression ending right before the trigger.
func Receiver(file *ast.File, cc *CompletionContext) *ast.Node {
	start := cc.PrefixStart()
	member := ast.Find(file.Root, func(n *ast.Node) bool {
		switch n.Kind {
		case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
			return n.Node != nil && n.NameStart == start && n.Start < cc.Trigger
		}
		return false
	})
	if member != nil {
		return member.Node
	}

	end := cc.ExpressionEnd()
	var best *ast.Node
	ast.Walk(file.Root, func(n *ast.Node) bool {
		if n.Start >= end || n.Finish < end {
			return n.Kind == ast.Main
		}
		if n.Finish == end && isExpression(n) && (best == nil || n.Start < best.Start) {
			best = n
		}
		return true
	})
	return best
}
