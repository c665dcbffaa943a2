// Package docs parses `---@` annotations out of comment trivia and binds them
// to statements.
package docs

import (
	"context"
	"strings"

	"github.com/alecthomas/participle/v2"
	plexer "github.com/alecthomas/participle/v2/lexer"
	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/lexer"
)

type importSpec struct {
	Path  *string `parser:"@String?"`
	Alias *string `parser:"( 'as' @Ident )?"`
	// Trailing holds whatever follows, usually a `-- note`.
	Trailing []string `parser:"@( Ident | String | Unterminated | Punct )*"`
}

var (
	importLexer = plexer.MustSimple([]plexer.SimpleRule{
		{Name: "String", Pattern: `"[^"\n]*"|'[^'\n]*'`},
		{Name: "Unterminated", Pattern: `["'][^\n]*`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Punct", Pattern: `[^\sA-Za-z_"']+`},
	})

	importParser = participle.MustBuild[importSpec](
		participle.Lexer(importLexer),
		participle.Elide("Whitespace"),
	)
)

// Parse extracts annotations from the comments of file and binds each to the
// nearest following statement, or to the enclosing block when none follows.
// The result is in source order.
func Parse(ctx context.Context, comments []lexer.Token, file *ast.File) []*ast.Doc {
	var out []*ast.Doc
	for _, c := range comments {
		if !c.IsDoc() || c.Long {
			continue
		}
		doc := parseComment(ctx, c)
		if doc == nil {
			continue
		}
		if file != nil && file.Root != nil {
			doc.Owner = owner(file.Root, c.End)
		}
		out = append(out, doc)
	}
	return out
}

// parseComment parses a single `---@tag ...` line.
func parseComment(ctx context.Context, c lexer.Token) *ast.Doc {
	body := strings.TrimLeft(c.Text, "-")
	offset := c.Start + len(c.Text) - len(body)
	trimmed := strings.TrimLeft(body, " \t")
	offset += len(body) - len(trimmed)
	if !strings.HasPrefix(trimmed, "@") {
		return nil
	}

	tag := trimmed[1:]
	end := strings.IndexAny(tag, " \t")
	if end < 0 {
		end = len(tag)
	}
	name := tag[:end]
	payload := tag[end:]
	payloadStart := offset + 1 + end

	doc := &ast.Doc{Start: c.Start, Finish: c.End}

	if name == "import" {
		doc.Kind = ast.DocImport
		parseImport(ctx, doc, payload, payloadStart)
		return doc
	}

	fields := strings.Fields(payload)
	first := func() string {
		if len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	rest := func() string {
		if len(fields) > 1 {
			return strings.Join(fields[1:], " ")
		}
		return ""
	}

	switch name {
	case "type":
		doc.Kind = ast.DocType
		doc.Type = strings.TrimSpace(payload)
	case "return":
		doc.Kind = ast.DocReturn
		doc.Type = strings.TrimSpace(payload)
	case "param":
		doc.Kind = ast.DocParam
		doc.Name, doc.Type = first(), rest()
	case "field":
		doc.Kind = ast.DocField
		doc.Name, doc.Type = first(), rest()
	case "class":
		doc.Kind = ast.DocClass
		doc.Name = strings.TrimSuffix(first(), ":")
		doc.Type = rest()
	case "alias":
		doc.Kind = ast.DocAlias
		doc.Name, doc.Type = first(), rest()
	case "cast":
		doc.Kind = ast.DocCast
		doc.Name, doc.Type = first(), rest()
	default:
		doc.Kind = ast.DocUnknown
		doc.Name = name
		doc.Type = strings.TrimSpace(payload)
	}
	return doc
}

// parseImport fills the path and alias of an import annotation. A missing or
// unparseable path leaves Path empty; the doc is still kept so it can be
// reported.
func parseImport(ctx context.Context, doc *ast.Doc, payload string, payloadStart int) {
	spec, err := importParser.ParseString("", payload)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("payload", payload).Msg("unparseable import annotation")
		return
	}

	if spec.Path != nil {
		raw := *spec.Path
		idx := strings.Index(payload, raw)
		if idx >= 0 {
			doc.PathStart = payloadStart + idx
			doc.PathFinish = doc.PathStart + len(raw)
		}
		doc.Path = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	if spec.Alias != nil {
		doc.Alias = *spec.Alias
	}
}

// owner finds the first statement starting at or after offset in the
// innermost block containing offset, falling back to that block.
func owner(root *ast.Node, offset int) *ast.Node {
	block := root
	for {
		var inside *ast.Node
		for _, stmt := range block.Body {
			if stmt.Start >= offset {
				return stmt
			}
			if offset < stmt.Finish {
				inside = stmt
				break
			}
		}
		if inside == nil {
			return block
		}
		next := innermostBlock(inside, offset)
		if next == nil {
			return inside
		}
		block = next
	}
}

func holdsBlock(n *ast.Node) bool {
	switch n.Kind {
	case ast.Function, ast.Do, ast.While, ast.Repeat, ast.NumericFor, ast.GenericFor,
		ast.IfBlock, ast.ElseIfBlock, ast.ElseBlock:
		return true
	}
	return false
}

func innermostBlock(n *ast.Node, offset int) *ast.Node {
	var best *ast.Node
	ast.Walk(n, func(c *ast.Node) bool {
		if offset < c.Start || offset >= c.Finish {
			return false
		}
		if holdsBlock(c) {
			best = c
		}
		return true
	})
	return best
}
