package parser

import (
	"fmt"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/lexer"
)

var compoundOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%", "^=": "^", "..=": "..",
}

func (p *parser) blockEnd() bool {
	t := p.cur()
	if t.Kind == lexer.EOF {
		return true
	}
	if t.Kind != lexer.Keyword {
		return false
	}
	switch t.Text {
	case "end", "else", "elseif", "until":
		return true
	}
	return false
}

func isStatementStart(t lexer.Token) bool {
	if t.Kind != lexer.Keyword {
		return false
	}
	switch t.Text {
	case "local", "function", "if", "while", "for", "repeat", "do", "return", "break", "goto",
		"end", "else", "elseif", "until":
		return true
	}
	return false
}

// block parses statements until a block terminator.
func (p *parser) block() []*ast.Node {
	var body []*ast.Node
	for !p.blockEnd() {
		start := p.pos
		errs := len(p.errors)

		if p.check("return") {
			body = append(body, p.returnStatement())
			if !p.blockEnd() {
				t := p.cur()
				p.errorAt(t, fmt.Sprintf("'end' expected near '%s'", near(t)))
			}
			continue
		}

		body = append(body, p.statement()...)

		if len(p.errors) > errs {
			p.sync(start)
		} else if p.pos == start {
			p.next()
		}
	}
	return body
}

// sync skips the rest of a broken statement: tokens on the line of the error
// that do not start a new statement.
func (p *parser) sync(start int) {
	if p.pos == start {
		p.next()
	}
	line := p.toks[p.pos-1].Line
	for {
		t := p.cur()
		if t.Kind == lexer.EOF || isStatementStart(t) || t.Line != line {
			return
		}
		p.next()
	}
}

func (p *parser) statement() []*ast.Node {
	t := p.cur()
	if !p.enter(t) {
		p.leave()
		p.next()
		return []*ast.Node{p.dummy(t)}
	}
	defer p.leave()

	switch {
	case t.Is(";"):
		p.next()
		return nil
	case t.Is("@"):
		// Luau attribute such as @native
		p.next()
		p.expectName()
		return p.statement()
	case t.Is("::"):
		return []*ast.Node{p.labelStatement()}
	case t.Is("break"):
		p.next()
		n := p.newNode(ast.Break, t.Start)
		n.Finish = t.End
		return []*ast.Node{n}
	case t.Is("goto"):
		p.next()
		n := p.newNode(ast.Goto, t.Start)
		if name, ok := p.expectName(); ok {
			n.Name, n.NameStart = name.Text, name.Start
		}
		n.Finish = p.lastEnd()
		return []*ast.Node{n}
	case t.Is("do"):
		p.next()
		n := p.newNode(ast.Do, t.Start)
		n.Body = p.scopedBlock()
		p.expectMatch("end", "do", t)
		n.Finish = p.lastEnd()
		return []*ast.Node{n}
	case t.Is("while"):
		return []*ast.Node{p.whileStatement()}
	case t.Is("repeat"):
		return []*ast.Node{p.repeatStatement()}
	case t.Is("if"):
		return []*ast.Node{p.ifStatement()}
	case t.Is("for"):
		return []*ast.Node{p.forStatement()}
	case t.Is("function"):
		return []*ast.Node{p.functionStatement()}
	case t.Is("local"):
		p.next()
		if p.check("function") {
			return []*ast.Node{p.localFunction(t)}
		}
		return p.localStatement(t)
	case t.Kind == lexer.Name && t.Text == "continue" && !continuesExpression(p.peek(1)):
		p.next()
		n := p.newNode(ast.Continue, t.Start)
		n.Finish = t.End
		return []*ast.Node{n}
	case t.Kind == lexer.Name && t.Text == "type" && p.peek(1).Kind == lexer.Name:
		return []*ast.Node{p.typeAlias(t)}
	case t.Kind == lexer.Name && t.Text == "export" && p.peek(1).Kind == lexer.Name && p.peek(1).Text == "type":
		p.next()
		n := p.typeAlias(p.cur())
		n.Start = t.Start
		return []*ast.Node{n}
	}

	return p.expressionStatement()
}

// continuesExpression reports whether a token following a name makes it part
// of an expression rather than a bare keyword-like statement.
func continuesExpression(t lexer.Token) bool {
	if t.Kind == lexer.String {
		return true
	}
	if t.Kind != lexer.Op {
		return false
	}
	if _, ok := compoundOps[t.Text]; ok {
		return true
	}
	switch t.Text {
	case "(", ".", "[", ":", "=", ",", "{":
		return true
	}
	return false
}

func (p *parser) scopedBlock() []*ast.Node {
	p.openScope()
	defer p.closeScope()
	return p.block()
}

func (p *parser) labelStatement() *ast.Node {
	open := p.next()
	n := p.newNode(ast.Label, open.Start)
	if name, ok := p.expectName(); ok {
		n.Name, n.NameStart = name.Text, name.Start
	}
	p.expect("::")
	n.Finish = p.lastEnd()
	return n
}

func (p *parser) returnStatement() *ast.Node {
	t := p.next()
	n := p.newNode(ast.Return, t.Start)
	if !p.blockEnd() && !p.check(";") {
		n.Exprs = p.exprList()
	}
	p.accept(";")
	n.Finish = p.lastEnd()
	return n
}

func (p *parser) whileStatement() *ast.Node {
	t := p.next()
	n := p.newNode(ast.While, t.Start)
	n.Value = p.expr()
	p.expect("do")
	n.Body = p.scopedBlock()
	p.expectMatch("end", "while", t)
	n.Finish = p.lastEnd()
	return n
}

func (p *parser) repeatStatement() *ast.Node {
	t := p.next()
	n := p.newNode(ast.Repeat, t.Start)
	// the condition sees the body's locals
	p.openScope()
	n.Body = p.block()
	p.expectMatch("until", "repeat", t)
	n.Value = p.expr()
	p.closeScope()
	n.Finish = p.lastEnd()
	return n
}

func (p *parser) ifStatement() *ast.Node {
	t := p.next()
	n := p.newNode(ast.If, t.Start)

	clause := p.newNode(ast.IfBlock, t.Start)
	clause.Value = p.expr()
	p.expect("then")
	clause.Body = p.scopedBlock()
	clause.Finish = p.lastEnd()
	n.Body = append(n.Body, clause)

	for p.check("elseif") {
		kw := p.next()
		clause := p.newNode(ast.ElseIfBlock, kw.Start)
		clause.Value = p.expr()
		p.expect("then")
		clause.Body = p.scopedBlock()
		clause.Finish = p.lastEnd()
		n.Body = append(n.Body, clause)
	}

	if p.check("else") {
		kw := p.next()
		clause := p.newNode(ast.ElseBlock, kw.Start)
		clause.Body = p.scopedBlock()
		clause.Finish = p.lastEnd()
		n.Body = append(n.Body, clause)
	}

	p.expectMatch("end", "if", t)
	n.Finish = p.lastEnd()
	return n
}

func (p *parser) forStatement() *ast.Node {
	t := p.next()

	first, ok := p.expectName()
	if !ok {
		return p.dummy(t)
	}
	p.skipAnnotation()

	if p.check("=") {
		p.next()
		n := p.newNode(ast.NumericFor, t.Start)
		n.Exprs = append(n.Exprs, p.expr())
		p.expect(",")
		n.Exprs = append(n.Exprs, p.expr())
		if p.accept(",") {
			n.Exprs = append(n.Exprs, p.expr())
		}
		p.expect("do")
		p.openScope()
		v := p.newLocal(first)
		p.declare(v)
		n.Params = []*ast.Node{v}
		n.Body = p.block()
		p.closeScope()
		p.expectMatch("end", "for", t)
		n.Finish = p.lastEnd()
		return n
	}

	n := p.newNode(ast.GenericFor, t.Start)
	names := []lexer.Token{first}
	for p.accept(",") {
		name, ok := p.expectName()
		if !ok {
			break
		}
		p.skipAnnotation()
		names = append(names, name)
	}
	p.expect("in")
	n.Exprs = p.exprList()
	p.expect("do")
	p.openScope()
	for _, name := range names {
		v := p.newLocal(name)
		p.declare(v)
		n.Params = append(n.Params, v)
	}
	n.Body = p.block()
	p.closeScope()
	p.expectMatch("end", "for", t)
	n.Finish = p.lastEnd()
	return n
}

// functionStatement parses `function a.b.c:m(...) end`.
func (p *parser) functionStatement() *ast.Node {
	t := p.next()

	name, ok := p.expectName()
	if !ok {
		fn := p.functionBody(t, false)
		d := p.dummy(t)
		d.Value = fn
		d.Finish = fn.Finish
		return d
	}

	target := p.nameRef(name)
	method := false
	for p.check(".") || p.check(":") {
		sep := p.next()
		field, ok := p.expectName()
		if !ok {
			break
		}
		access := p.newNode(ast.GetField, target.Start)
		if sep.Text == ":" {
			access.Kind = ast.GetMethod
			method = true
		}
		access.Node = target
		access.Name, access.NameStart = field.Text, field.Start
		access.Finish = field.End
		target = access
		if method {
			break
		}
	}

	fn := p.functionBody(t, method)
	toSet(target)
	target.Value = fn
	target.Start = t.Start
	target.Finish = fn.Finish
	return target
}

func (p *parser) localFunction(kw lexer.Token) *ast.Node {
	fnTok := p.next()
	name, ok := p.expectName()
	if !ok {
		return p.dummy(fnTok)
	}
	local := p.newLocal(name)
	local.Start = kw.Start
	p.declare(local)
	local.Value = p.functionBody(fnTok, false)
	local.Finish = local.Value.Finish
	return local
}

// localStatement parses `local a <attrib>, b: T = e1, e2`. Each name becomes
// its own Local statement; values beyond the names hang off the last one.
func (p *parser) localStatement(kw lexer.Token) []*ast.Node {
	var locals []*ast.Node
	for {
		name, ok := p.expectName()
		if !ok {
			break
		}
		local := p.newLocal(name)
		if p.check("<") && p.peek(1).Kind == lexer.Name && p.peek(2).Is(">") {
			p.next()
			local.Attrib = p.next().Text
			p.next()
		}
		p.skipAnnotation()
		locals = append(locals, local)
		if !p.accept(",") {
			break
		}
	}
	if len(locals) == 0 {
		return []*ast.Node{p.dummy(kw)}
	}
	locals[0].Start = kw.Start

	var values []*ast.Node
	if p.accept("=") {
		values = p.exprList()
	}
	assignValues(locals, values)

	for _, l := range locals {
		p.declare(l)
	}
	return locals
}

func assignValues(targets, values []*ast.Node) {
	for i, target := range targets {
		if i < len(values) {
			target.Value = values[i]
			if values[i].Finish > target.Finish {
				target.Finish = values[i].Finish
			}
		}
	}
	if len(values) > len(targets) {
		last := targets[len(targets)-1]
		last.Exprs = append(last.Exprs, values[len(targets):]...)
		last.Finish = values[len(values)-1].Finish
	}
}

// toSet turns a read access into the matching write access in place.
func toSet(n *ast.Node) bool {
	switch n.Kind {
	case ast.GetLocal:
		n.Kind = ast.SetLocal
	case ast.GetGlobal:
		n.Kind = ast.SetGlobal
	case ast.GetField:
		n.Kind = ast.SetField
	case ast.GetMethod:
		n.Kind = ast.SetMethod
	case ast.GetIndex:
		n.Kind = ast.SetIndex
	default:
		return false
	}
	return true
}

func (p *parser) expressionStatement() []*ast.Node {
	start := p.cur()
	first := p.suffixedExpr()

	if op, ok := compoundOps[p.cur().Text]; ok && p.cur().Kind == lexer.Op {
		p.next()
		if !toSet(first) {
			p.errorAt(start, "syntax error near '"+near(p.cur())+"'")
			return []*ast.Node{first}
		}
		first.Op = op
		first.Value = p.expr()
		first.Finish = first.Value.Finish
		return []*ast.Node{first}
	}

	if p.check("=") || p.check(",") {
		targets := []*ast.Node{first}
		for p.accept(",") {
			targets = append(targets, p.suffixedExpr())
		}
		for _, target := range targets {
			if !toSet(target) {
				p.errorAt(start, "syntax error near '"+near(p.cur())+"'")
			}
		}
		if !p.expect("=") {
			return targets
		}
		assignValues(targets, p.exprList())
		return targets
	}

	if first.Kind != ast.Call && first.Kind != ast.Dummy {
		p.errorAt(p.cur(), "syntax error near '"+near(p.cur())+"'")
	}
	return []*ast.Node{first}
}

func (p *parser) typeAlias(kw lexer.Token) *ast.Node {
	p.next()
	n := p.newNode(ast.TypeAlias, kw.Start)
	if name, ok := p.expectName(); ok {
		n.Name, n.NameStart = name.Text, name.Start
	}
	if p.check("<") {
		p.skipBalanced()
	}
	if p.expect("=") {
		p.skipType()
	}
	n.Finish = p.lastEnd()
	return n
}
