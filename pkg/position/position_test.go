package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/luals/pkg/position"
)

func TestLineIndex_LineAndColumn(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		offset   int
		wantLine int
		wantCol  int
	}{
		{
			name:     "empty text",
			text:     "",
			offset:   0,
			wantLine: 0,
			wantCol:  0,
		},
		{
			name:     "single line, middle position",
			text:     "Hello, World!",
			offset:   7,
			wantLine: 0,
			wantCol:  7,
		},
		{
			name:     "multiple lines, second line",
			text:     "Hello\nWorld\nTest zzz",
			offset:   8,
			wantLine: 1,
			wantCol:  2,
		},
		{
			name:     "offset on newline belongs to its line",
			text:     "ab\ncd",
			offset:   2,
			wantLine: 0,
			wantCol:  2,
		},
		{
			name:     "start of third line",
			text:     "local a = 1\nlocal b = 2\nprint(a)",
			offset:   24,
			wantLine: 2,
			wantCol:  0,
		},
		{
			name:     "past the end clamps",
			text:     "abc",
			offset:   99,
			wantLine: 0,
			wantCol:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := position.NewLineIndex(tt.text)
			gotLine, gotCol := idx.LineAndColumn(tt.offset)
			assert.Equal(t, tt.wantLine, gotLine, "line")
			assert.Equal(t, tt.wantCol, gotCol, "column")
		})
	}
}

func TestLineIndex_RoundTrip(t *testing.T) {
	text := "local s = \"héllo\"\n-- 😀 comment\nreturn s\n"
	idx := position.NewLineIndex(text)

	require.Equal(t, 4, idx.LineCount())

	for offset := 0; offset <= len(text); offset++ {
		// only rune boundaries round trip
		if offset < len(text) && text[offset]&0xC0 == 0x80 {
			continue
		}
		place := idx.Place(offset)
		assert.Equal(t, offset, idx.Offset(place.Line, place.Character), "offset %d -> %+v", offset, place)
	}
}

func TestLineIndex_UTF16Columns(t *testing.T) {
	text := "-- 😀x"
	idx := position.NewLineIndex(text)

	// the emoji is four bytes and two UTF-16 units
	place := idx.Place(len("-- 😀"))
	assert.Equal(t, position.Place{Line: 0, Character: 5}, place)
	assert.Equal(t, len("-- 😀"), idx.Offset(0, 5))
}

func TestRawPosition_GetRange(t *testing.T) {
	text := "local a = 1\nprint(undefinedThing)"
	pos := position.NewBasicPosition("undefinedThing", 18)

	rng := pos.GetRange(text)
	assert.Equal(t, position.Range{
		Start: position.Place{Line: 1, Character: 6},
		End:   position.Place{Line: 1, Character: 20},
	}, rng)
}

func TestNewSpanPosition_Clamps(t *testing.T) {
	pos := position.NewSpanPosition("abc", 1, 10)
	assert.Equal(t, "bc", pos.Text)
	assert.Equal(t, 1, pos.Offset)
}
