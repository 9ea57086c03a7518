// Package errors classifies failures of sidenote commands so the CLI can
// report them consistently and exit with a meaningful status.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType is the category of a failure.
type ErrorType int

const (
	ErrorTypeConfig     ErrorType = iota // missing or invalid configuration
	ErrorTypeValidation                  // bad user input: line numbers, IDs, empty text
	ErrorTypeStorage                     // comment store connection or query failures
	ErrorTypeFileSystem                  // annotated files that cannot be read
	ErrorTypeAnchor                      // comments that no longer resolve to a line
	ErrorTypeInternal                    // unexpected internal state
)

// Severity says how much of the current command survives the failure.
type Severity int

const (
	SeverityLow      Severity = iota // degraded but complete
	SeverityMedium                   // transient, retrying later may succeed
	SeverityHigh                     // the command cannot complete
	SeverityCritical                 // nothing further can run
)

// Exit statuses follow sysexits.h.
const (
	exitFailure   = 1
	exitUsage     = 64
	exitSoftware  = 70
	exitIOErr     = 74
	exitTempFail  = 75
	exitConfigErr = 78
)

var typeNames = map[ErrorType]string{
	ErrorTypeConfig:     "CONFIG",
	ErrorTypeValidation: "VALIDATION",
	ErrorTypeStorage:    "STORAGE",
	ErrorTypeFileSystem: "FILESYSTEM",
	ErrorTypeAnchor:     "ANCHOR",
	ErrorTypeInternal:   "INTERNAL",
}

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (t ErrorType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Error is a classified failure. Context carries the values needed to act on
// it (file, offset, store path) and is shown by DetailedString.
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same type, so callers can test the category
// with errors.Is(err, &Error{Type: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// WithContext attaches a key/value pair and returns e for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether nothing further can run after e.
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString renders e with its category, cause and sorted context.
func (e *Error) DetailedString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s\n", e.Severity, e.Type, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, "Caused by: %v\n", e.Cause)
	}
	if len(e.Context) == 0 {
		return sb.String()
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString("Context:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, e.Context[k])
	}
	return sb.String()
}

// New creates an error without a cause.
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{Type: errType, Severity: severity, Message: message}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Severity: severity, Message: message, Cause: err}
}

func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// StorageError wraps a comment store failure.
func StorageError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, message)
}

func StorageErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityCritical, fmt.Sprintf(format, args...))
}

func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, fmt.Sprintf(format, args...))
}

// AnchorError wraps a failure to resolve a comment's anchor.
func AnchorError(err error, message string) *Error {
	return Wrap(err, ErrorTypeAnchor, SeverityHigh, message)
}

func as(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// IsFatal reports whether err is a classified critical failure.
func IsFatal(err error) bool {
	e, ok := as(err)
	return ok && e.IsFatal()
}

// GetSeverity returns the severity of err. Unclassified errors are medium.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	if e, ok := as(err); ok {
		return e.Severity
	}
	return SeverityMedium
}

// GetType returns the category of err. Unclassified errors are internal.
func GetType(err error) ErrorType {
	if e, ok := as(err); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// Details renders err for --verbose output.
func Details(err error) string {
	if e, ok := as(err); ok {
		return e.DetailedString()
	}
	return err.Error() + "\n"
}

// ExitCode maps an error to a process exit status. A filesystem failure of
// medium severity or lower is temporary (files not ready yet) and a critical
// internal failure is a bug.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetType(err) {
	case ErrorTypeConfig:
		return exitConfigErr
	case ErrorTypeValidation:
		return exitUsage
	case ErrorTypeStorage:
		return exitIOErr
	case ErrorTypeFileSystem:
		if GetSeverity(err) <= SeverityMedium {
			return exitTempFail
		}
		return exitIOErr
	case ErrorTypeInternal:
		if IsFatal(err) {
			return exitSoftware
		}
	}
	return exitFailure
}
