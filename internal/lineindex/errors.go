package lineindex

import "fmt"

// MalformedFileError is returned when a file's line separator cannot be
// determined, so no index can be built for it.
type MalformedFileError struct {
	Reason string
}

func (e *MalformedFileError) Error() string {
	if e.Reason == "" {
		return "malformed file: line separator unknown"
	}
	return fmt.Sprintf("malformed file: %s", e.Reason)
}

// OffsetOutOfRangeError is returned when an offset lies outside [0, length].
type OffsetOutOfRangeError struct {
	Offset int
	Length int
}

func (e *OffsetOutOfRangeError) Error() string {
	return fmt.Sprintf("offset %d out of range (length %d)", e.Offset, e.Length)
}

// LineNotFoundError is returned when an in-range offset maps to no line, or
// a line number does not exist.
type LineNotFoundError struct {
	Offset int
	Line   int
}

func (e *LineNotFoundError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("line %d not found", e.Line)
	}
	return fmt.Sprintf("no line contains offset %d", e.Offset)
}
