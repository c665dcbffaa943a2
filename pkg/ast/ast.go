// Package ast defines the syntax tree built by the parser and consumed by the
// resolver.
//
// Every syntactic construct is represented by the single Node struct tagged by
// Kind; fields that do not apply to a kind stay zero. Node identity is pointer
// identity, which is what the resolver de-duplicates on.
package ast

import (
	"github.com/walteh/luals/pkg/lexer"
	"github.com/walteh/luals/pkg/position"
)

// Kind tags the variant of a Node.
type Kind int

const (
	Dummy Kind = iota
	Main
	Local
	SetLocal
	GetLocal
	SetGlobal
	GetGlobal
	SetField
	GetField
	SetMethod
	GetMethod
	SetIndex
	GetIndex
	Call
	Paren
	Return
	Function
	Table
	TableField
	TableIndex
	TableValue
	String
	Number
	Boolean
	Nil
	Varargs
	Binary
	Unary
	IfExpr
	If
	IfBlock
	ElseIfBlock
	ElseBlock
	While
	Repeat
	NumericFor
	GenericFor
	Do
	Break
	Continue
	Goto
	Label
	TypeAlias
	// Virtual nodes are synthesized by the resolver and never appear in a
	// parsed tree.
	Virtual
)

var kindNames = [...]string{
	Dummy:       "dummy",
	Main:        "main",
	Local:       "local",
	SetLocal:    "setlocal",
	GetLocal:    "getlocal",
	SetGlobal:   "setglobal",
	GetGlobal:   "getglobal",
	SetField:    "setfield",
	GetField:    "getfield",
	SetMethod:   "setmethod",
	GetMethod:   "getmethod",
	SetIndex:    "setindex",
	GetIndex:    "getindex",
	Call:        "call",
	Paren:       "paren",
	Return:      "return",
	Function:    "function",
	Table:       "table",
	TableField:  "tablefield",
	TableIndex:  "tableindex",
	TableValue:  "tablevalue",
	String:      "string",
	Number:      "number",
	Boolean:     "boolean",
	Nil:         "nil",
	Varargs:     "varargs",
	Binary:      "binary",
	Unary:       "unary",
	IfExpr:      "ifexpr",
	If:          "if",
	IfBlock:     "ifblock",
	ElseIfBlock: "elseifblock",
	ElseBlock:   "elseblock",
	While:       "while",
	Repeat:      "repeat",
	NumericFor:  "loop",
	GenericFor:  "in",
	Do:          "do",
	Break:       "break",
	Continue:    "continue",
	Goto:        "goto",
	Label:       "label",
	TypeAlias:   "typealias",
	Virtual:     "virtual",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Special markers set on resolver-synthesized bindings.
const (
	SpecialImport = "import"
	SpecialEnv    = "env"
	SpecialConfig = "config"
	SpecialTest   = "test"
)

// Node is a syntax tree node.
type Node struct {
	Kind   Kind
	Start  int
	Finish int

	// Parent and File are lookup-only back references.
	Parent *Node
	File   *File

	// Name is the identifier of locals, globals, fields, methods, labels and
	// table fields. NameStart is the byte offset of that identifier.
	Name      string
	NameStart int

	// Value is the owned child expression: a local's initializer, an
	// assignment's value, a paren's inner expression, a table entry's value,
	// a unary operand or a condition.
	Value *Node
	// Node is the callee of a Call or the object of a member access.
	Node *Node
	// Index is the key expression of an index access or table index entry.
	Index *Node
	// Args are the arguments of a Call.
	Args []*Node
	// Body holds the statements of a block.
	Body []*Node
	// Exprs holds expression lists: returned values, table entries, for
	// iterators/bounds, binary operands, extra values of an assignment.
	Exprs []*Node
	// Params holds the parameters of a function or the variables of a for.
	Params []*Node

	// Ref links a GetLocal/SetLocal to its declaring Local; Refs is the
	// reverse list on the Local.
	Ref  *Node
	Refs []*Node

	// Literal is the decoded value of String, the raw text of Number and
	// "true"/"false" for Boolean.
	Literal string
	// Op is the operator of Binary/Unary or the compound assignment operator.
	Op string
	// Attrib is a Lua 5.4 local attribute such as "const".
	Attrib string
	// Method is set on functions declared with ':' and on method calls.
	Method bool

	// Special, Doc and URI are only used on resolver-synthesized nodes.
	Special string
	Doc     *Doc
	URI     string
}

// IsSet reports whether the node assigns to its target.
func (n *Node) IsSet() bool {
	switch n.Kind {
	case SetLocal, SetGlobal, SetField, SetMethod, SetIndex, Local:
		return true
	}
	return false
}

// IsGlobal reports whether the node reads or writes a global name.
func (n *Node) IsGlobal() bool {
	return n.Kind == GetGlobal || n.Kind == SetGlobal
}

// IsImport reports whether the node is a virtual import-alias binding.
func (n *Node) IsImport() bool {
	return n.Kind == Virtual && n.Special == SpecialImport
}

// NameFinish is the byte offset just past Name.
func (n *Node) NameFinish() int {
	return n.NameStart + len(n.Name)
}

// EnclosingFunction returns the nearest Function or Main ancestor.
func (n *Node) EnclosingFunction() *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind == Function || p.Kind == Main {
			return p
		}
	}
	return nil
}

// Unparen strips any number of surrounding parentheses.
func Unparen(n *Node) *Node {
	for n != nil && n.Kind == Paren && n.Value != nil {
		n = n.Value
	}
	return n
}

// DocKind tags the variant of a Doc.
type DocKind string

const (
	DocImport  DocKind = "doc.import"
	DocType    DocKind = "doc.type"
	DocParam   DocKind = "doc.param"
	DocReturn  DocKind = "doc.return"
	DocClass   DocKind = "doc.class"
	DocField   DocKind = "doc.field"
	DocAlias   DocKind = "doc.alias"
	DocCast    DocKind = "doc.cast"
	DocUnknown DocKind = "doc.unknown"
)

// Doc is a structured annotation parsed from a `---@` comment.
type Doc struct {
	Kind DocKind
	// Owner is the statement (or enclosing block) the annotation is bound to.
	Owner *Node

	Start  int
	Finish int

	// Path and Alias are set on doc.import. PathStart/PathFinish span the
	// quoted path literal when one was present.
	Path       string
	PathStart  int
	PathFinish int
	Alias      string

	// Name and Type carry the payload of the other annotations.
	Name string
	Type string
}

// File is a parsed source file.
type File struct {
	URI  string
	Text string

	Root     *Node
	Docs     []*Doc
	Comments []lexer.Token
	Errors   []*lexer.SyntaxError
	Lines    *position.LineIndex
}

// Position returns the raw position spanning start..finish in the file text.
func (f *File) Position(start, finish int) position.RawPosition {
	return position.NewSpanPosition(f.Text, start, finish)
}

// NodePosition returns the raw position of the node, narrowed to its name for
// named member accesses.
func (f *File) NodePosition(n *Node) position.RawPosition {
	switch n.Kind {
	case GetField, SetField, GetMethod, SetMethod, TableField:
		if n.Name != "" {
			return f.Position(n.NameStart, n.NameFinish())
		}
	}
	return f.Position(n.Start, n.Finish)
}

// Imports returns the doc.import annotations in source order.
func (f *File) Imports() []*Doc {
	var out []*Doc
	for _, d := range f.Docs {
		if d.Kind == DocImport {
			out = append(out, d)
		}
	}
	return out
}

// DocsOf returns the annotations bound to the given node.
func (f *File) DocsOf(n *Node) []*Doc {
	var out []*Doc
	for _, d := range f.Docs {
		if d.Owner == n {
			out = append(out, d)
		}
	}
	return out
}
