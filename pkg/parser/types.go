package parser

import "github.com/walteh/luals/pkg/lexer"

// Luau type syntax is accepted and discarded.

// skipAnnotation skips an optional `: Type`.
func (p *parser) skipAnnotation() {
	if p.accept(":") {
		p.skipType()
	}
}

func (p *parser) skipType() {
	p.accept("|")
	p.accept("&")
	p.skipSimpleType()
	for {
		switch {
		case p.check("?"):
			p.next()
		case p.check("|"), p.check("&"):
			p.next()
			p.skipSimpleType()
		default:
			return
		}
	}
}

func (p *parser) skipSimpleType() {
	t := p.cur()
	switch {
	case t.Kind == lexer.Name:
		p.next()
		for p.check(".") && p.peek(1).Kind == lexer.Name {
			p.next()
			p.next()
		}
		if p.check("<") || (t.Text == "typeof" && p.check("(")) {
			p.skipBalanced()
		}
	case t.Is("nil"), t.Is("true"), t.Is("false"), t.Kind == lexer.String:
		p.next()
	case t.Is("{"):
		p.skipBalanced()
	case t.Is("<"), t.Is("("):
		if t.Is("<") {
			p.skipBalanced()
		}
		if p.check("(") {
			p.skipBalanced()
		}
		if p.accept("->") {
			p.skipType()
		}
	case t.Is("..."):
		p.next()
		p.skipType()
	default:
		p.errorAt(t, "type expected near '"+near(t)+"'")
	}
}

// skipBalanced skips from an opening bracket to its matching closer, treating
// ( [ { < as one family.
func (p *parser) skipBalanced() {
	depth := 0
	for {
		t := p.cur()
		if t.Kind == lexer.EOF {
			p.errorAt(t, "unbalanced brackets near '<eof>'")
			return
		}
		if t.Kind == lexer.Op {
			switch t.Text {
			case "(", "{", "[", "<":
				depth++
			case ")", "}", "]", ">":
				depth--
			case ">>":
				depth -= 2
			}
		}
		p.next()
		if depth <= 0 {
			return
		}
	}
}
