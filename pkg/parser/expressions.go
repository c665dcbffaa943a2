package parser

import (
	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/lexer"
)

type priority struct{ left, right int }

var binaryPriority = map[string]priority{
	"or": {1, 1}, "and": {2, 2},
	"<": {3, 3}, ">": {3, 3}, "<=": {3, 3}, ">=": {3, 3}, "~=": {3, 3}, "==": {3, 3},
	"|": {4, 4}, "~": {5, 5}, "&": {6, 6}, "<<": {7, 7}, ">>": {7, 7},
	"..": {9, 8},
	"+": {10, 10}, "-": {10, 10},
	"*": {11, 11}, "/": {11, 11}, "//": {11, 11}, "%": {11, 11},
	"^": {14, 13},
}

const unaryPriority = 12

func (p *parser) exprList() []*ast.Node {
	list := []*ast.Node{p.expr()}
	for p.accept(",") {
		list = append(list, p.expr())
	}
	return list
}

func (p *parser) expr() *ast.Node {
	return p.subExpr(0)
}

func binaryOp(t lexer.Token) (priority, bool) {
	if t.Kind != lexer.Op && t.Kind != lexer.Keyword {
		return priority{}, false
	}
	prio, ok := binaryPriority[t.Text]
	return prio, ok
}

func isUnary(t lexer.Token) bool {
	return t.Is("not") || t.Is("-") || t.Is("#") || t.Is("~")
}

// subExpr parses a chain of binary operators whose left priority exceeds
// limit.
func (p *parser) subExpr(limit int) *ast.Node {
	t := p.cur()
	if !p.enter(t) {
		p.leave()
		p.next()
		return p.dummy(t)
	}
	defer p.leave()

	var left *ast.Node
	if isUnary(t) {
		p.next()
		left = p.newNode(ast.Unary, t.Start)
		left.Op = t.Text
		left.Value = p.subExpr(unaryPriority)
		left.Finish = left.Value.Finish
	} else {
		left = p.simpleExpr()
	}

	for {
		op := p.cur()
		prio, ok := binaryOp(op)
		if !ok || prio.left <= limit {
			break
		}
		p.next()
		right := p.subExpr(prio.right)
		bin := p.newNode(ast.Binary, left.Start)
		bin.Op = op.Text
		bin.Exprs = []*ast.Node{left, right}
		bin.Finish = right.Finish
		left = bin
	}
	return left
}

func (p *parser) simpleExpr() *ast.Node {
	t := p.cur()
	var n *ast.Node
	switch {
	case t.Kind == lexer.Number:
		p.next()
		n = p.newNode(ast.Number, t.Start)
		n.Literal = t.Text
	case t.Kind == lexer.String:
		p.next()
		n = p.newNode(ast.String, t.Start)
		n.Literal = lexer.StringValue(t.Text)
	case t.Is("nil"):
		p.next()
		n = p.newNode(ast.Nil, t.Start)
	case t.Is("true"), t.Is("false"):
		p.next()
		n = p.newNode(ast.Boolean, t.Start)
		n.Literal = t.Text
	case t.Is("..."):
		p.next()
		n = p.newNode(ast.Varargs, t.Start)
	case t.Is("{"):
		return p.castSuffix(p.table())
	case t.Is("function"):
		p.next()
		return p.functionBody(t, false)
	case t.Is("if"):
		return p.castSuffix(p.ifExpr())
	default:
		return p.castSuffix(p.suffixedExpr())
	}
	n.Finish = t.End
	return p.castSuffix(n)
}

// castSuffix skips a Luau `:: Type` assertion.
func (p *parser) castSuffix(n *ast.Node) *ast.Node {
	for p.accept("::") {
		p.skipType()
	}
	return n
}

func (p *parser) primaryExpr() *ast.Node {
	t := p.cur()
	switch {
	case t.Kind == lexer.Name:
		p.next()
		return p.nameRef(t)
	case t.Is("("):
		p.next()
		n := p.newNode(ast.Paren, t.Start)
		n.Value = p.expr()
		p.expectMatch(")", "(", t)
		n.Finish = p.lastEnd()
		return n
	}
	p.errorAt(t, "unexpected symbol near '"+near(t)+"'")
	return p.dummy(t)
}

func (p *parser) suffixedExpr() *ast.Node {
	n := p.primaryExpr()
	if n.Kind == ast.Dummy {
		return n
	}
	for {
		t := p.cur()
		switch {
		case t.Is("."):
			p.next()
			access := p.newNode(ast.GetField, n.Start)
			access.Node = n
			if name, ok := p.expectName(); ok {
				access.Name, access.NameStart = name.Text, name.Start
			} else {
				access.NameStart = t.End
			}
			access.Finish = p.lastEnd()
			n = access
		case t.Is("["):
			p.next()
			access := p.newNode(ast.GetIndex, n.Start)
			access.Node = n
			access.Index = p.expr()
			p.expectMatch("]", "[", t)
			access.Finish = p.lastEnd()
			n = access
		case t.Is(":"):
			p.next()
			method := p.newNode(ast.GetMethod, n.Start)
			method.Node = n
			name, ok := p.expectName()
			if !ok {
				return n
			}
			method.Name, method.NameStart = name.Text, name.Start
			method.Finish = name.End
			call := p.newNode(ast.Call, n.Start)
			call.Node = method
			call.Method = true
			call.Args = p.callArgs()
			call.Finish = p.lastEnd()
			n = call
		case t.Is("("), t.Is("{"), t.Kind == lexer.String:
			call := p.newNode(ast.Call, n.Start)
			call.Node = n
			call.Args = p.callArgs()
			call.Finish = p.lastEnd()
			n = call
		default:
			return n
		}
	}
}

func (p *parser) callArgs() []*ast.Node {
	t := p.cur()
	switch {
	case t.Kind == lexer.String:
		p.next()
		s := p.newNode(ast.String, t.Start)
		s.Finish = t.End
		s.Literal = lexer.StringValue(t.Text)
		return []*ast.Node{s}
	case t.Is("{"):
		return []*ast.Node{p.table()}
	case t.Is("("):
		p.next()
		var args []*ast.Node
		if !p.check(")") {
			args = p.exprList()
		}
		p.expectMatch(")", "(", t)
		return args
	}
	p.errorAt(t, "function arguments expected near '"+near(t)+"'")
	return nil
}

func (p *parser) table() *ast.Node {
	open := p.next()
	n := p.newNode(ast.Table, open.Start)
	for !p.check("}") && p.cur().Kind != lexer.EOF {
		t := p.cur()
		var field *ast.Node
		switch {
		case t.Is("["):
			p.next()
			field = p.newNode(ast.TableIndex, t.Start)
			field.Index = p.expr()
			p.expectMatch("]", "[", t)
			p.expect("=")
			field.Value = p.expr()
		case t.Kind == lexer.Name && p.peek(1).Is("="):
			p.next()
			p.next()
			field = p.newNode(ast.TableField, t.Start)
			field.Name, field.NameStart = t.Text, t.Start
			field.Value = p.expr()
		default:
			field = p.newNode(ast.TableValue, t.Start)
			field.Value = p.expr()
		}
		field.Finish = p.lastEnd()
		n.Exprs = append(n.Exprs, field)

		if !p.accept(",") && !p.accept(";") {
			break
		}
	}
	p.expectMatch("}", "{", open)
	n.Finish = p.lastEnd()
	return n
}

// functionBody parses generics, parameters, return type and body of a
// function whose `function` keyword is kw.
func (p *parser) functionBody(kw lexer.Token, method bool) *ast.Node {
	fn := p.newNode(ast.Function, kw.Start)
	fn.Method = method

	if p.check("<") {
		p.skipBalanced()
	}

	p.openScope()
	defer p.closeScope()

	if method {
		self := p.newNode(ast.Local, kw.Start)
		self.Name = "self"
		self.NameStart = kw.Start
		fn.Params = append(fn.Params, self)
		p.declare(self)
	}

	open := p.cur()
	if p.expect("(") {
		for !p.check(")") && p.cur().Kind != lexer.EOF {
			t := p.cur()
			if t.Is("...") {
				p.next()
				v := p.newNode(ast.Varargs, t.Start)
				v.Finish = t.End
				fn.Params = append(fn.Params, v)
				p.skipAnnotation()
				break
			}
			name, ok := p.expectName()
			if !ok {
				break
			}
			param := p.newLocal(name)
			p.skipAnnotation()
			fn.Params = append(fn.Params, param)
			if !p.accept(",") {
				break
			}
		}
		p.expectMatch(")", "(", open)
	}
	for _, param := range fn.Params {
		if param.Kind == ast.Local {
			p.declare(param)
		}
	}

	p.skipAnnotation()

	fn.Body = p.block()
	p.expectMatch("end", "function", kw)
	fn.Finish = p.lastEnd()
	return fn
}

// ifExpr parses a Luau `if c then a elseif c2 then b else d` expression.
func (p *parser) ifExpr() *ast.Node {
	t := p.next()
	n := p.newNode(ast.IfExpr, t.Start)
	n.Exprs = append(n.Exprs, p.expr())
	p.expect("then")
	n.Exprs = append(n.Exprs, p.expr())
	for p.accept("elseif") {
		n.Exprs = append(n.Exprs, p.expr())
		p.expect("then")
		n.Exprs = append(n.Exprs, p.expr())
	}
	if p.expect("else") {
		n.Exprs = append(n.Exprs, p.expr())
	}
	n.Finish = p.lastEnd()
	return n
}
