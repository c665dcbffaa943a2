package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCompletionContext(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		offset     int
		wantPrefix string
		wantDot    bool
		wantColon  bool
		wantEnd    int
	}{
		{name: "empty content", content: "", offset: 0, wantEnd: -1},
		{name: "after dot", content: "t.", offset: 2, wantDot: true, wantEnd: 1},
		{name: "partial field", content: "t.na", offset: 4, wantPrefix: "na", wantDot: true, wantEnd: 1},
		{name: "after colon", content: "obj:m", offset: 5, wantPrefix: "m", wantColon: true, wantEnd: 3},
		{name: "space before dot", content: "t .x", offset: 4, wantPrefix: "x", wantDot: true, wantEnd: 1},
		{name: "plain name", content: "local pri", offset: 9, wantPrefix: "pri", wantEnd: -1},
		{name: "concatenation", content: `a..b`, offset: 4, wantPrefix: "b", wantEnd: -1},
		{name: "label", content: "::x", offset: 3, wantPrefix: "x", wantEnd: -1},
		{name: "offset clamped", content: "ab", offset: 10, wantPrefix: "ab", wantEnd: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewCompletionContext(tt.content, tt.offset)
			assert.Equal(t, tt.wantPrefix, ctx.Prefix)
			assert.Equal(t, tt.wantDot, ctx.AfterDot)
			assert.Equal(t, tt.wantColon, ctx.AfterColon)
			assert.Equal(t, tt.wantDot || tt.wantColon, ctx.IsMemberCompletion())
			assert.Equal(t, tt.wantEnd, ctx.ExpressionEnd())
		})
	}
}
