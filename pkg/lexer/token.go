package lexer

import (
	"fmt"
	"sort"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Invalid
	Name
	Keyword
	Number
	String
	Op
	Comment
	Whitespace
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "eof"
	case Invalid:
		return "invalid"
	case Name:
		return "name"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	case Op:
		return "op"
	case Comment:
		return "comment"
	case Whitespace:
		return "whitespace"
	default:
		return "unknown"
	}
}

// Token is a lexical unit with absolute byte offsets into the source.
type Token struct {
	Kind  Kind
	Text  string
	Start int
	End   int
	// Line is 1-based.
	Line int
	// Long is set for long-bracket strings and comments.
	Long bool
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Start)
}

// Is reports whether the token is the given keyword or operator.
func (t Token) Is(text string) bool {
	return (t.Kind == Keyword || t.Kind == Op) && t.Text == text
}

// IsDoc reports whether a comment token is a `---` doc comment.
func (t Token) IsDoc() bool {
	return t.Kind == Comment && len(t.Text) >= 3 && t.Text[:3] == "---"
}

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// IsKeyword reports whether name is reserved. Luau's `continue`, `type` and
// `export` are contextual and lex as names.
func IsKeyword(name string) bool {
	return keywords[name]
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SyntaxError is a positional, recoverable error raised while tokenizing or
// parsing.
type SyntaxError struct {
	Offset   int
	Finish   int
	Expected string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Expected)
}
