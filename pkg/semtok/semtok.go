// Package semtok classifies the tokens of a Lua file for semantic
// highlighting.
//
// Lexical classes (keywords, literals, comments, operators) come from the
// token stream; identifiers are classified from the syntax tree so a name
// reads as a parameter, a field or a runtime global depending on what it
// resolves to.
package semtok

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/builtins"
	"github.com/walteh/luals/pkg/lexer"
	"github.com/walteh/luals/pkg/position"
)

// punctuation is left to the editor's grammar.
var punctuation = map[string]bool{
	"(": true, ")": true, "{": true, "}": true, "[": true, "]": true,
	",": true, ";": true, ".": true, ":": true, "::": true,
}

// GetTokensForFile returns the semantic tokens of file sorted by offset.
// tables decides which globals carry the defaultLibrary modifier and may be
// nil.
func GetTokensForFile(ctx context.Context, file *ast.File, tables *builtins.Tables) []Token {
	if file == nil {
		return nil
	}

	stream, err := lexer.Tokenize(file.Text)
	if err != nil {
		zerolog.Ctx(ctx).Trace().Err(err).Str("uri", file.URI).Msg("lexical errors while highlighting")
	}

	v := &visitor{file: file, tables: tables, seen: map[int]bool{}}
	if file.Root != nil {
		ast.Walk(file.Root, v.visit)
	}

	for _, t := range stream.Tokens {
		switch t.Kind {
		case lexer.Keyword:
			v.add(TokenKeyword, ModifierNone, t.Start, t.End)
		case lexer.Number:
			v.add(TokenNumber, ModifierNone, t.Start, t.End)
		case lexer.String:
			v.add(TokenString, ModifierNone, t.Start, t.End)
		case lexer.Op:
			if !punctuation[t.Text] {
				v.add(TokenOperator, ModifierNone, t.Start, t.End)
			}
		}
	}
	for _, c := range stream.Comments() {
		mod := ModifierNone
		if c.IsDoc() {
			mod = ModifierDocumentation
		}
		v.add(TokenComment, mod, c.Start, c.End)
	}

	sort.SliceStable(v.tokens, func(i, j int) bool {
		return v.tokens[i].Range.Offset < v.tokens[j].Range.Offset
	})
	return v.tokens
}

// Encode converts tokens into the relative five-integer LSP encoding. Tokens
// spanning several lines are split per line.
func Encode(tokens []Token, lines *position.LineIndex) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)
	var prevLine, prevChar uint32

	emit := func(offset int, text string, tok Token) {
		if text == "" {
			return
		}
		start := lines.Place(offset)
		end := lines.Place(offset + len(text))
		line, char := uint32(start.Line), uint32(start.Character)

		deltaLine := line - prevLine
		deltaChar := char
		if deltaLine == 0 {
			deltaChar = char - prevChar
		}
		data = append(data, deltaLine, deltaChar, uint32(end.Character-start.Character), uint32(tok.Type), uint32(tok.Modifier))
		prevLine, prevChar = line, char
	}

	for _, tok := range tokens {
		offset := tok.Range.Offset
		for i, part := range strings.Split(tok.Range.Text, "\n") {
			if i > 0 {
				offset++
			}
			emit(offset, strings.TrimSuffix(part, "\r"), tok)
			offset += len(part)
		}
	}
	return data
}
