package scanner

import (
	"sort"
	"strings"
)

// LineIndex maps between byte offsets and 0-based line/column positions,
// which is how the protocol layer addresses cursors.
type LineIndex struct {
	text   string
	starts []int // byte offset of each line start
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

// LineCount returns the number of lines in the document.
func (ix *LineIndex) LineCount() int { return len(ix.starts) }

// Offset converts a line/column pair to a byte offset, clamping positions
// past the end of a line or the document.
func (ix *LineIndex) Offset(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(ix.starts) {
		return len(ix.text)
	}
	start := ix.starts[line]
	end := len(ix.text)
	if line+1 < len(ix.starts) {
		end = ix.starts[line+1] - 1 // exclude the newline
	}
	if col < 0 {
		col = 0
	}
	if start+col > end {
		return end
	}
	return start + col
}

// Position converts a byte offset to a line/column pair.
func (ix *LineIndex) Position(offset int) (line, col int) {
	if offset < 0 {
		return 0, 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	line = sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	}) - 1
	return line, offset - ix.starts[line]
}

// Line returns the text of a line without its trailing newline.
func (ix *LineIndex) Line(line int) string {
	if line < 0 || line >= len(ix.starts) {
		return ""
	}
	start := ix.starts[line]
	end := len(ix.text)
	if line+1 < len(ix.starts) {
		end = ix.starts[line+1]
	}
	return strings.TrimRight(ix.text[start:end], "\n")
}

// Fragment returns the text of a line up to a column, the slice the
// resolver matches its cursor patterns against.
func (ix *LineIndex) Fragment(line, col int) string {
	full := ix.Line(line)
	if col < 0 {
		return ""
	}
	if col > len(full) {
		return full
	}
	return full[:col]
}

// Rest returns the text of a line from a column to its end.
func (ix *LineIndex) Rest(line, col int) string {
	full := ix.Line(line)
	if col < 0 || col > len(full) {
		return ""
	}
	return full[col:]
}
