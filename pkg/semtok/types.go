package semtok

import (
	"github.com/walteh/luals/pkg/position"
)

// TokenType is the semantic meaning of a token. The value is the index into
// Legend().TokenTypes.
type TokenType uint32

const (
	TokenNamespace TokenType = iota
	TokenVariable
	TokenParameter
	TokenProperty
	TokenFunction
	TokenMethod
	TokenKeyword
	TokenString
	TokenNumber
	TokenComment
	TokenOperator
)

var tokenTypeNames = [...]string{
	TokenNamespace: "namespace",
	TokenVariable:  "variable",
	TokenParameter: "parameter",
	TokenProperty:  "property",
	TokenFunction:  "function",
	TokenMethod:    "method",
	TokenKeyword:   "keyword",
	TokenString:    "string",
	TokenNumber:    "number",
	TokenComment:   "comment",
	TokenOperator:  "operator",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// TokenModifier is a bit set of token characteristics. Bit i corresponds to
// Legend().TokenModifiers[i].
type TokenModifier uint32

const (
	ModifierNone        TokenModifier = 0
	ModifierDeclaration TokenModifier = 1 << (iota - 1)
	ModifierReadonly
	ModifierStatic
	ModifierDefaultLibrary
	ModifierDocumentation
)

var modifierNames = []string{
	"declaration",
	"readonly",
	"static",
	"defaultLibrary",
	"documentation",
}

func (m TokenModifier) String() string {
	if m == ModifierNone {
		return "none"
	}
	out := ""
	for i, name := range modifierNames {
		if m&(1<<i) == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	return out
}

// Token is a classified span of source text.
type Token struct {
	Type     TokenType
	Modifier TokenModifier
	Range    position.RawPosition
}

// Legend names the token types and modifiers in encoding order.
type Legend struct {
	TokenTypes     []string
	TokenModifiers []string
}

func GetLegend() Legend {
	return Legend{
		TokenTypes:     append([]string(nil), tokenTypeNames[:]...),
		TokenModifiers: append([]string(nil), modifierNames...),
	}
}
