package position

import (
	"fmt"
)

type Place struct {
	Line      int
	Character int
}

type Range struct {
	Start Place
	End   Place
}

// RawPosition represents a position in the source text
type RawPosition struct {
	// Offset is the byte offset in the source text
	Offset int
	// Text is the actual text at this position
	Text string
}

// Length returns the length of the text at this position
func (p *RawPosition) Length() int {
	return len(p.Text)
}

func NewBasicPosition(text string, offset int) RawPosition {
	return RawPosition{Text: text, Offset: offset}
}

// NewSpanPosition slices the source between two byte offsets.
func NewSpanPosition(source string, start, finish int) RawPosition {
	if start < 0 {
		start = 0
	}
	if finish > len(source) {
		finish = len(source)
	}
	if finish < start {
		finish = start
	}
	return RawPosition{Text: source[start:finish], Offset: start}
}

// Contains reports whether offset falls inside the position, end inclusive so a
// cursor placed right after an identifier still hits it.
func (p RawPosition) Contains(offset int) bool {
	return offset >= p.Offset && offset <= p.Offset+p.Length()
}

// GetRange calculates the zero-based line/UTF-16 column range for a RawPosition
func (p RawPosition) GetRange(fileText string) Range {
	idx := NewLineIndex(fileText)
	return Range{
		Start: idx.Place(p.Offset),
		End:   idx.Place(p.Offset + p.Length()),
	}
}

func (p RawPosition) String() string {
	return fmt.Sprintf("%s@%d", p.Text, p.Offset)
}
