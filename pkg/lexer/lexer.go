// Package lexer tokenizes Lua and Luau source text.
package lexer

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

var (
	// LexerRules defines the stateful lexer rules for Lua/Luau. Long brackets
	// push a state whose end rule back-references the opening level.
	LexerRules = lexer.Rules{
		"Root": {
			{Name: "LongCommentStart", Pattern: `--\[(=*)\[`, Action: lexer.Push("LongComment")},
			{Name: "Comment", Pattern: `--[^\n]*`, Action: nil},
			{Name: "LongStringStart", Pattern: `\[(=*)\[`, Action: lexer.Push("LongString")},
			{Name: "Whitespace", Pattern: `\s+`, Action: nil},
			{Name: "String", Pattern: `"(\\[\s\S]|[^"\\\n])*"|'(\\[\s\S]|[^'\\\n])*'|\x60(\\[\s\S]|[^\x60\\])*\x60`, Action: nil},
			{Name: "UnfinishedString", Pattern: `"(\\[\s\S]|[^"\\\n])*|'(\\[\s\S]|[^'\\\n])*`, Action: nil},
			{Name: "Number", Pattern: `0[xX][0-9a-fA-F_]*(\.[0-9a-fA-F_]*)?([pP][+-]?[0-9]+)?|0[bB][01_]+|([0-9][0-9_]*(\.[0-9_]*)?|\.[0-9][0-9_]*)([eE][+-]?[0-9]+)?`, Action: nil},
			{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_]*`, Action: nil},
			{Name: "Op", Pattern: `\.\.\.|\.\.=|\.\.|//=|//|::|->|==|~=|<=|>=|<<|>>|\+=|-=|\*=|/=|%=|\^=|[-+*/%^#&~|<>=(){}\[\];:,.?@!]`, Action: nil},
			{Name: "Char", Pattern: `[\s\S]`, Action: nil},
		},
		"LongComment": {
			{Name: "LongCommentEnd", Pattern: `\]\1\]`, Action: lexer.Pop()},
			{Name: "LongCommentText", Pattern: `[^\]]+|\]`, Action: nil},
		},
		"LongString": {
			{Name: "LongStringEnd", Pattern: `\]\1\]`, Action: lexer.Pop()},
			{Name: "LongStringText", Pattern: `[^\]]+|\]`, Action: nil},
		},
	}

	// LuaLexer is the stateful lexer definition built from LexerRules.
	LuaLexer = lexer.MustStateful(LexerRules)

	symbolNames = func() map[lexer.TokenType]string {
		names := map[lexer.TokenType]string{}
		for name, typ := range LuaLexer.Symbols() {
			names[typ] = name
		}
		return names
	}()
)

// Stream is the result of tokenizing a file. Tokens holds only significant
// tokens and always ends with an EOF token; Trivia holds whitespace and
// comments in source order.
type Stream struct {
	Tokens []Token
	Trivia []Token
	Errors []*SyntaxError
}

// Comments returns the comment trivia in source order.
func (s *Stream) Comments() []Token {
	out := make([]Token, 0, len(s.Trivia))
	for _, t := range s.Trivia {
		if t.Kind == Comment {
			out = append(out, t)
		}
	}
	return out
}

// Tokenize converts source text into a token stream. The stream is always
// returned; lexical errors are collected on it and also combined into the
// returned error.
func Tokenize(source string) (*Stream, error) {
	stream := &Stream{}

	text := source
	if strings.HasPrefix(text, "#") {
		end := strings.IndexByte(text, '\n')
		if end < 0 {
			end = len(text)
		}
		stream.Trivia = append(stream.Trivia, Token{Kind: Comment, Text: text[:end], Start: 0, End: end, Line: 1})
		text = strings.Repeat(" ", end) + text[end:]
	}

	lex, err := LuaLexer.Lex("", strings.NewReader(text))
	if err != nil {
		return nil, errors.Errorf("creating lexer: %w", err)
	}

	var long *Token
	longKind := Kind(0)

	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, errors.Errorf("lexing: %w", err)
		}

		if tok.Type == lexer.EOF {
			if long != nil {
				stream.Errors = append(stream.Errors, &SyntaxError{Offset: long.Start, Finish: len(source), Expected: "unfinished long " + longKind.String()})
				stream.push(*long)
			}
			stream.Tokens = append(stream.Tokens, Token{Kind: EOF, Start: len(source), End: len(source), Line: tok.Pos.Line})
			break
		}

		start := tok.Pos.Offset
		end := start + len(tok.Value)
		base := Token{Text: source[start:end], Start: start, End: end, Line: tok.Pos.Line}

		switch symbolNames[tok.Type] {
		case "LongCommentStart", "LongStringStart":
			base.Long = true
			base.Kind = Comment
			if symbolNames[tok.Type] == "LongStringStart" {
				base.Kind = String
			}
			long, longKind = &base, base.Kind
		case "LongCommentText", "LongStringText":
			if long != nil {
				long.End = end
			}
		case "LongCommentEnd", "LongStringEnd":
			if long != nil {
				long.End = end
				long.Text = source[long.Start:end]
				stream.push(*long)
				long = nil
			}
		case "Comment":
			base.Kind = Comment
			stream.push(base)
		case "Whitespace":
			base.Kind = Whitespace
			stream.push(base)
		case "String":
			base.Kind = String
			stream.push(base)
		case "UnfinishedString":
			base.Kind = String
			stream.Errors = append(stream.Errors, &SyntaxError{Offset: start, Finish: end, Expected: "unfinished string"})
			stream.push(base)
		case "Number":
			base.Kind = Number
			stream.push(base)
		case "Name":
			base.Kind = Name
			if IsKeyword(base.Text) {
				base.Kind = Keyword
			}
			stream.push(base)
		case "Op":
			base.Kind = Op
			stream.push(base)
		default:
			base.Kind = Invalid
			stream.Errors = append(stream.Errors, &SyntaxError{Offset: start, Finish: end, Expected: "unexpected symbol near '" + base.Text + "'"})
		}
	}

	errs := make([]error, 0, len(stream.Errors))
	for _, e := range stream.Errors {
		errs = append(errs, e)
	}

	return stream, multierr.Combine(errs...)
}

func (s *Stream) push(t Token) {
	switch t.Kind {
	case Comment, Whitespace:
		s.Trivia = append(s.Trivia, t)
	default:
		s.Tokens = append(s.Tokens, t)
	}
}

// StringValue decodes the contents of a string token, handling the common
// escapes and long brackets. Undecodable escapes are kept verbatim.
func StringValue(raw string) string {
	if raw == "" {
		return ""
	}
	if raw[0] == '[' {
		open := strings.IndexByte(raw[1:], '[')
		if open < 0 {
			return ""
		}
		level := open
		body := raw[open+2:]
		closer := "]" + strings.Repeat("=", level) + "]"
		body = strings.TrimSuffix(body, closer)
		// a newline right after the opening bracket is skipped
		if strings.HasPrefix(body, "\r\n") {
			body = body[2:]
		} else if strings.HasPrefix(body, "\n") {
			body = body[1:]
		}
		return body
	}

	quote := raw[0]
	body := raw[1:]
	if len(body) > 0 && body[len(body)-1] == quote {
		body = body[:len(body)-1]
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '"', '\'', '\n':
			sb.WriteByte(body[i])
		case 'z':
			for i+1 < len(body) && (body[i+1] == ' ' || body[i+1] == '\n' || body[i+1] == '\t' || body[i+1] == '\r') {
				i++
			}
		default:
			sb.WriteByte('\\')
			sb.WriteByte(body[i])
		}
	}
	return sb.String()
}
