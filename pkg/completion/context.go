package completion

import (
	"strings"
)

// CompletionContext describes the text around the cursor
type CompletionContext struct {
	Content string
	Offset  int
	// Prefix is the partial identifier left of the cursor.
	Prefix string
	// AfterDot and AfterColon report a member access trigger before Prefix.
	AfterDot   bool
	AfterColon bool
	// Trigger is the offset of the `.` or `:`, -1 when there is none.
	Trigger int
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// NewCompletionContext creates a new completion context for a byte offset
func NewCompletionContext(content string, offset int) *CompletionContext {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	ctx := &CompletionContext{Content: content, Offset: offset, Trigger: -1}

	start := offset
	for start > 0 && isIdentByte(content[start-1]) {
		start--
	}
	ctx.Prefix = content[start:offset]

	if start == 0 {
		return ctx
	}
	switch content[start-1] {
	case '.':
		// `..` is concatenation and `...` varargs
		if start >= 2 && content[start-2] == '.' {
			return ctx
		}
		ctx.AfterDot = true
		ctx.Trigger = start - 1
	case ':':
		if start >= 2 && content[start-2] == ':' {
			return ctx
		}
		ctx.AfterColon = true
		ctx.Trigger = start - 1
	}
	return ctx
}

// PrefixStart is the offset where the partial identifier begins.
func (c *CompletionContext) PrefixStart() int {
	return c.Offset - len(c.Prefix)
}

// IsMemberCompletion reports whether fields of an expression are wanted.
func (c *CompletionContext) IsMemberCompletion() bool {
	return c.AfterDot || c.AfterColon
}

// ExpressionEnd returns the offset just past the expression before the
// trigger, skipping whitespace.
func (c *CompletionContext) ExpressionEnd() int {
	if c.Trigger < 0 {
		return -1
	}
	end := c.Trigger
	for end > 0 && strings.ContainsRune(" \t\r\n", rune(c.Content[end-1])) {
		end--
	}
	return end
}
