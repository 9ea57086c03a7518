// Package lineindex maps byte offsets in a file snapshot to line numbers and
// line text.
//
// An Index is built once from raw content and the length of the file's line
// separator. Offsets are computed as if every line, including the last one,
// were followed by exactly one separator of that length, which is how the
// offsets were produced when the anchors were first recorded.
package lineindex

import (
	"sort"
)

// Index is a read-only offset table for one snapshot of a file.
// Line numbers are 0-based.
type Index struct {
	offsets []int
	lines   []string
	length  int
	sepLen  int
}

// New scans content and builds an Index. sepLen must be positive.
//
// A line ends at "\n", "\r\n" or "\r". A final unterminated segment counts as
// a line; a trailing terminator does not produce an extra empty line.
func New(content []byte, sepLen int) (*Index, error) {
	if sepLen <= 0 {
		return nil, &MalformedFileError{Reason: "line separator length must be positive"}
	}

	idx := &Index{sepLen: sepLen}
	running := 0
	start := 0
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c != '\n' && c != '\r' {
			continue
		}
		running = idx.appendLine(string(content[start:i]), running)
		if c == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			i++
		}
		start = i + 1
	}
	if start < len(content) {
		running = idx.appendLine(string(content[start:]), running)
	}
	idx.length = running

	return idx, nil
}

func (idx *Index) appendLine(text string, running int) int {
	idx.offsets = append(idx.offsets, running)
	idx.lines = append(idx.lines, text)
	return running + len(text) + idx.sepLen
}

// Length returns the total scanned length, separators included.
func (idx *Index) Length() int { return idx.length }

// LineCount returns the number of lines in the snapshot.
func (idx *Index) LineCount() int { return len(idx.lines) }

// Line returns the text of line n without its separator.
func (idx *Index) Line(n int) (string, error) {
	if n < 0 || n >= len(idx.lines) {
		return "", &LineNotFoundError{Offset: -1, Line: n}
	}
	return idx.lines[n], nil
}

// LineStart returns the offset of the first character of line n.
func (idx *Index) LineStart(n int) (int, error) {
	if n < 0 || n >= len(idx.offsets) {
		return 0, &LineNotFoundError{Offset: -1, Line: n}
	}
	return idx.offsets[n], nil
}

// Resolve returns the text and number of the line containing offset.
//
// Offsets greater than Length (or negative) fail with OffsetOutOfRangeError.
// An offset equal to Length, or any offset in an empty snapshot, belongs to
// no line and fails with LineNotFoundError.
func (idx *Index) Resolve(offset int) (string, int, error) {
	if offset < 0 || offset > idx.length {
		return "", -1, &OffsetOutOfRangeError{Offset: offset, Length: idx.length}
	}

	// first line starting after offset; the containing line is the one before it
	next := sort.Search(len(idx.offsets), func(i int) bool {
		return idx.offsets[i] > offset
	})
	n := next - 1
	if n < 0 || offset >= idx.end(n) {
		return "", -1, &LineNotFoundError{Offset: offset, Line: -1}
	}
	return idx.lines[n], n, nil
}

// end is the exclusive end offset of line n, separator included.
func (idx *Index) end(n int) int {
	if n+1 < len(idx.offsets) {
		return idx.offsets[n+1]
	}
	return idx.length
}
