package anchor

import "fmt"

// FileNotFoundError is returned when a persisted URL no longer resolves to a
// readable file.
type FileNotFoundError struct {
	URL string
	Err error
}

func (e *FileNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file not found: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("file not found: %s", e.URL)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// NotReadyError is returned by Load and Save when the content provider cannot
// serve files yet. Callers retry once the provider is ready.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("content source not ready: %s", e.Reason)
}

// CommentNotFoundError is returned by Remove for an unknown comment ID.
type CommentNotFoundError struct {
	ID string
}

func (e *CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment %s not found", e.ID)
}
