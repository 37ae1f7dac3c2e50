package source

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"
)

// TextIndex provides offset/position conversion over a single document.
// Offsets are bytes; positions follow the LSP convention of zero-based
// lines and UTF-16 code-unit columns, so non-ASCII manifest content maps
// correctly.
type TextIndex struct {
	content []byte
	lineIdx []uint32 // byte offsets of every '\n'
}

// NewTextIndex builds the line index for content. The content is not
// copied; callers must not mutate it while the index is in use.
func NewTextIndex(content []byte) *TextIndex {
	return &TextIndex{
		content: content,
		lineIdx: buildLineIndex(content),
	}
}

func buildLineIndex(content []byte) []uint32 {
	var out []uint32
	for i, b := range content {
		if b == '\n' {
			out = append(out, safeUint32(i))
		}
	}
	return out
}

func safeUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("offset overflow: %w", err))
	}
	return v
}

// Len returns the content length in bytes.
func (t *TextIndex) Len() uint32 {
	return safeUint32(len(t.content))
}

// LineCount returns the number of lines. A trailing newline starts a
// final empty line, matching the editor convention.
func (t *TextIndex) LineCount() int {
	return len(t.lineIdx) + 1
}

// lineBounds returns the byte range [start, end) of a line, excluding
// the terminating newline.
func (t *TextIndex) lineBounds(line int) (uint32, uint32, error) {
	if line < 0 || line >= t.LineCount() {
		return 0, 0, fmt.Errorf("line %d out of range (have %d lines)", line, t.LineCount())
	}
	var start uint32
	if line > 0 {
		start = t.lineIdx[line-1] + 1
	}
	end := t.Len()
	if line < len(t.lineIdx) {
		end = t.lineIdx[line]
	}
	return start, end, nil
}

// OffsetForPosition converts an LSP position to a byte offset. A line
// past the last line or a character past the end of its line is an
// error; silently clamping would desynchronize the tracked text from
// the editor's buffer.
func (t *TextIndex) OffsetForPosition(pos Position) (uint32, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("negative position %d:%d", pos.Line, pos.Character)
	}
	start, end, err := t.lineBounds(pos.Line)
	if err != nil {
		return 0, err
	}
	units := 0
	off := start
	for off < end && units < pos.Character {
		r, size := utf8.DecodeRune(t.content[off:end])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		units += need
		off += safeUint32(size)
	}
	if units < pos.Character {
		return 0, fmt.Errorf("character %d past end of line %d", pos.Character, pos.Line)
	}
	return off, nil
}

// PositionForOffset converts a byte offset to an LSP position. An
// offset equal to the length is the end-of-document position; an offset
// right after a newline belongs to the following (possibly empty) line.
// Offsets beyond the text are an error.
func (t *TextIndex) PositionForOffset(off uint32) (Position, error) {
	if off > t.Len() {
		return Position{}, fmt.Errorf("offset %d beyond text length %d", off, t.Len())
	}
	idx := sort.Search(len(t.lineIdx), func(i int) bool { return t.lineIdx[i] >= off })
	line := idx
	var lineStart uint32
	if idx > 0 {
		lineStart = t.lineIdx[idx-1] + 1
	}
	units := 0
	for cur := lineStart; cur < off; {
		r, size := utf8.DecodeRune(t.content[cur:off])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		cur += safeUint32(size)
	}
	return Position{Line: line, Character: units}, nil
}

// RangeForSpan maps a byte span to a position range.
func (t *TextIndex) RangeForSpan(span Span) (Range, error) {
	start, err := t.PositionForOffset(span.Start)
	if err != nil {
		return Range{}, err
	}
	end, err := t.PositionForOffset(span.End)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end}, nil
}
