package position

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// LineIndex maps byte offsets to line/column pairs. It stores the byte offset of
// every line start so lookups are a binary search.
type LineIndex struct {
	text   string
	starts []int
}

func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (me *LineIndex) LineCount() int {
	return len(me.starts)
}

// LineStart returns the byte offset where the zero-based line begins.
func (me *LineIndex) LineStart(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(me.starts) {
		return len(me.text)
	}
	return me.starts[line]
}

// Line returns the zero-based line holding offset.
func (me *LineIndex) Line(offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset > len(me.text) {
		offset = len(me.text)
	}
	return sort.Search(len(me.starts), func(i int) bool { return me.starts[i] > offset }) - 1
}

// LineAndColumn returns the zero-based line and byte column of offset.
func (me *LineIndex) LineAndColumn(offset int) (line, col int) {
	if offset > len(me.text) {
		offset = len(me.text)
	}
	if offset < 0 {
		offset = 0
	}
	line = me.Line(offset)
	return line, offset - me.starts[line]
}

// Place converts a byte offset to a zero-based line and UTF-16 column, which is
// what LSP clients count in.
func (me *LineIndex) Place(offset int) Place {
	line, col := me.LineAndColumn(offset)
	start := me.starts[line]
	return Place{Line: line, Character: utf16Len(me.text[start : start+col])}
}

// Offset converts a zero-based line and UTF-16 column back to a byte offset,
// clamping to the end of the line.
func (me *LineIndex) Offset(line, character int) int {
	if line >= len(me.starts) {
		return len(me.text)
	}
	start := me.LineStart(line)
	end := len(me.text)
	if line+1 < len(me.starts) {
		end = me.starts[line+1] - 1
	}
	units := 0
	for i := start; i < end; {
		if units >= character {
			return i
		}
		r, size := utf8.DecodeRuneInString(me.text[i:end])
		units += len(utf16.Encode([]rune{r}))
		i += size
	}
	return end
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
