package semtok

import (
	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/builtins"
)

// visitor classifies identifiers while walking the tree.
type visitor struct {
	file   *ast.File
	tables *builtins.Tables
	tokens []Token
	// seen holds start offsets already classified; the first classification
	// of a span wins.
	seen map[int]bool
}

func (v *visitor) add(typ TokenType, mod TokenModifier, start, finish int) {
	if finish <= start || v.seen[start] {
		return
	}
	v.seen[start] = true
	v.tokens = append(v.tokens, Token{Type: typ, Modifier: mod, Range: v.file.Position(start, finish)})
}

// addName emits a token for n's identifier when it is really spelled out at
// NameStart. The implicit self parameter is not.
func (v *visitor) addName(n *ast.Node, typ TokenType, mod TokenModifier) {
	if n.Name == "" || n.NameFinish() > len(v.file.Text) || v.file.Text[n.NameStart:n.NameFinish()] != n.Name {
		return
	}
	v.add(typ, mod, n.NameStart, n.NameFinish())
}

func (v *visitor) visit(n *ast.Node) bool {
	switch n.Kind {
	case ast.Call:
		v.callee(n.Node)

	case ast.Local:
		typ := TokenVariable
		if isParam(n) {
			typ = TokenParameter
		} else if isFunction(n.Value) {
			typ = TokenFunction
		}
		v.addName(n, typ, ModifierDeclaration|readonly(n))

	case ast.GetLocal, ast.SetLocal:
		typ := TokenVariable
		mod := ModifierNone
		if n.Ref != nil {
			if isParam(n.Ref) {
				typ = TokenParameter
			}
			mod = readonly(n.Ref)
		}
		if n.Kind == ast.SetLocal && isFunction(n.Value) {
			typ = TokenFunction
		}
		v.addName(n, typ, mod)

	case ast.GetGlobal, ast.SetGlobal:
		typ := TokenVariable
		mod := ModifierStatic
		if n.Kind == ast.SetGlobal {
			mod |= ModifierDeclaration
			if isFunction(n.Value) {
				typ = TokenFunction
			}
		}
		if v.tables != nil {
			if g, ok := v.tables.Lookup(n.Name); ok {
				mod |= ModifierDefaultLibrary
				switch g.Kind {
				case "function":
					typ = TokenFunction
				case "table", "library":
					typ = TokenNamespace
				}
			}
		}
		v.addName(n, typ, mod)

	case ast.GetField, ast.SetField, ast.TableField:
		typ := TokenProperty
		if isFunction(n.Value) {
			typ = TokenFunction
		}
		v.addName(n, typ, ModifierNone)

	case ast.GetMethod, ast.SetMethod:
		v.addName(n, TokenMethod, ModifierNone)
	}
	return true
}

// callee classifies the name being called before the generic rules see it.
func (v *visitor) callee(n *ast.Node) {
	n = ast.Unparen(n)
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.GetMethod:
		v.addName(n, TokenMethod, ModifierNone)
	case ast.GetField:
		v.addName(n, TokenFunction, ModifierNone)
	case ast.GetLocal:
		v.addName(n, TokenFunction, ModifierNone)
	case ast.GetGlobal:
		mod := ModifierStatic
		if v.tables != nil {
			if _, ok := v.tables.Lookup(n.Name); ok {
				mod |= ModifierDefaultLibrary
			}
		}
		v.addName(n, TokenFunction, mod)
	}
}

func isFunction(n *ast.Node) bool {
	return n != nil && n.Kind == ast.Function
}

func isParam(local *ast.Node) bool {
	p := local.Parent
	if p == nil || p.Kind != ast.Function {
		return false
	}
	for _, param := range p.Params {
		if param == local {
			return true
		}
	}
	return false
}

func readonly(local *ast.Node) TokenModifier {
	if local.Attrib == "const" || local.Attrib == "close" {
		return ModifierReadonly
	}
	return ModifierNone
}
