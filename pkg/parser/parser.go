// Package parser builds the syntax tree of a Lua or Luau source file.
//
// The parser is a hand-written recursive descent over the token stream. Names
// are bound to their declaring locals while parsing, so every identifier
// reference comes out as either GetLocal/SetLocal or GetGlobal/SetGlobal.
// Syntax errors never abort the parse: the offending construct becomes a
// Dummy node, the error is recorded on the file and parsing resumes at the
// next statement.
package parser

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/docs"
	"github.com/walteh/luals/pkg/lexer"
	"github.com/walteh/luals/pkg/position"
)

// maxDepth bounds nesting of blocks and expressions.
const maxDepth = 200

// Parse tokenizes and parses text. The returned file is always usable; syntax
// errors are collected on File.Errors. An error is only returned when the
// tokenizer itself could not run.
func Parse(ctx context.Context, uri string, text string) (*ast.File, error) {
	stream, lexErr := lexer.Tokenize(text)
	if stream == nil {
		return nil, errors.Errorf("tokenizing %s: %w", uri, lexErr)
	}

	file := &ast.File{
		URI:      uri,
		Text:     text,
		Comments: stream.Comments(),
		Lines:    position.NewLineIndex(text),
	}

	p := &parser{
		file:   file,
		toks:   stream.Tokens,
		errors: append([]*lexer.SyntaxError(nil), stream.Errors...),
	}

	root := p.newNode(ast.Main, 0)
	p.openScope()
	root.Body = p.block()
	p.closeScope()
	if t := p.cur(); t.Kind != lexer.EOF {
		p.errorAt(t, fmt.Sprintf("'<eof>' expected near '%s'", t.Text))
	}
	root.Finish = len(text)

	linkParents(root, nil)
	file.Root = root

	sort.SliceStable(p.errors, func(i, j int) bool { return p.errors[i].Offset < p.errors[j].Offset })
	file.Errors = p.errors
	file.Docs = docs.Parse(ctx, file.Comments, file)

	zerolog.Ctx(ctx).Trace().
		Str("uri", uri).
		Int("statements", len(root.Body)).
		Int("errors", len(file.Errors)).
		Int("docs", len(file.Docs)).
		Msg("parsed file")

	return file, nil
}

type scope struct {
	parent *scope
	names  map[string]*ast.Node
}

type parser struct {
	file   *ast.File
	toks   []lexer.Token
	pos    int
	scope  *scope
	depth  int
	errors []*lexer.SyntaxError
}

func linkParents(n, parent *ast.Node) {
	n.Parent = parent
	for _, c := range ast.Children(n) {
		linkParents(c, n)
	}
}

func (p *parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

// lastEnd is the end offset of the most recently consumed token.
func (p *parser) lastEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End
}

func (p *parser) check(text string) bool {
	return p.cur().Is(text)
}

func (p *parser) accept(text string) bool {
	if p.check(text) {
		p.next()
		return true
	}
	return false
}

func near(t lexer.Token) string {
	if t.Kind == lexer.EOF {
		return "<eof>"
	}
	return t.Text
}

func (p *parser) expect(text string) bool {
	if p.accept(text) {
		return true
	}
	t := p.cur()
	p.errorAt(t, fmt.Sprintf("'%s' expected near '%s'", text, near(t)))
	return false
}

// expectMatch reports a missing closer together with the line of its opener.
func (p *parser) expectMatch(closer, opener string, open lexer.Token) bool {
	if p.accept(closer) {
		return true
	}
	t := p.cur()
	if t.Line == open.Line {
		p.errorAt(t, fmt.Sprintf("'%s' expected near '%s'", closer, near(t)))
	} else {
		p.errorAt(t, fmt.Sprintf("'%s' expected (to close '%s' at line %d) near '%s'", closer, opener, open.Line, near(t)))
	}
	return false
}

func (p *parser) errorAt(t lexer.Token, msg string) {
	// one error per offset keeps recovery from stacking duplicates
	for _, e := range p.errors {
		if e.Offset == t.Start {
			return
		}
	}
	p.errors = append(p.errors, &lexer.SyntaxError{Offset: t.Start, Finish: t.End, Expected: msg})
}

func (p *parser) expectName() (lexer.Token, bool) {
	t := p.cur()
	if t.Kind != lexer.Name {
		p.errorAt(t, fmt.Sprintf("<name> expected near '%s'", near(t)))
		return t, false
	}
	p.next()
	return t, true
}

func (p *parser) newNode(kind ast.Kind, start int) *ast.Node {
	return &ast.Node{Kind: kind, Start: start, Finish: start, File: p.file}
}

func (p *parser) dummy(t lexer.Token) *ast.Node {
	n := p.newNode(ast.Dummy, t.Start)
	n.Finish = t.End
	return n
}

func (p *parser) openScope() {
	p.scope = &scope{parent: p.scope, names: map[string]*ast.Node{}}
}

func (p *parser) closeScope() {
	p.scope = p.scope.parent
}

func (p *parser) declare(local *ast.Node) {
	p.scope.names[local.Name] = local
}

func (p *parser) lookup(name string) *ast.Node {
	for s := p.scope; s != nil; s = s.parent {
		if l, ok := s.names[name]; ok {
			return l
		}
	}
	return nil
}

// nameRef binds an identifier token to a local or a global.
func (p *parser) nameRef(t lexer.Token) *ast.Node {
	if local := p.lookup(t.Text); local != nil {
		n := p.newNode(ast.GetLocal, t.Start)
		n.Finish = t.End
		n.Name = t.Text
		n.NameStart = t.Start
		n.Ref = local
		local.Refs = append(local.Refs, n)
		return n
	}
	n := p.newNode(ast.GetGlobal, t.Start)
	n.Finish = t.End
	n.Name = t.Text
	n.NameStart = t.Start
	return n
}

func (p *parser) newLocal(t lexer.Token) *ast.Node {
	n := p.newNode(ast.Local, t.Start)
	n.Finish = t.End
	n.Name = t.Text
	n.NameStart = t.Start
	return n
}

func (p *parser) enter(t lexer.Token) bool {
	p.depth++
	if p.depth > maxDepth {
		p.errorAt(t, "chunk has too many syntax levels")
		return false
	}
	return true
}

func (p *parser) leave() {
	p.depth--
}
