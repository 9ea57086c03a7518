package anchor

// ContentProvider supplies file identities and snapshots to the Tracker.
type ContentProvider interface {
	// Locate maps a persisted URL to a file identity. It returns a
	// *FileNotFoundError when the file cannot be found or opened.
	Locate(url string) (string, error)

	// URL returns the stable URL used to persist records of a file.
	URL(file string) string

	// RawContent returns the current bytes of a file.
	RawContent(file string) ([]byte, error)

	// LineSeparatorLength returns the length of the file's line separator,
	// or a *lineindex.MalformedFileError when it cannot be determined.
	LineSeparatorLength(file string) (int, error)
}

// ReadinessChecker is implemented by providers that may not be able to serve
// files yet. Ready returns nil once they can.
type ReadinessChecker interface {
	Ready() error
}
