// Package output renders conflict reports for the terminal, hooks and tools.
package output

import (
	"io"
	"os"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

// Report is what a conflict check hands to a formatter.
type Report struct {
	Conflicts anchor.ConflictSet
	// Comments is the number of comments that were checked.
	Comments int
	// DisplayName shortens file identities for display. Nil prints them as is.
	DisplayName func(file string) string
}

func (r *Report) name(file string) string {
	if r.DisplayName == nil {
		return file
	}
	return r.DisplayName(file)
}

// Formatter defines output formatting interface
type Formatter interface {
	Format(report *Report, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // Aggregated drift notice
	VerbosityStandard                       // Per-file conflicts with diffs
	VerbosityJSON                           // Machine-readable JSON
)

// NewFormatter creates appropriate formatter based on level
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityJSON:
		return &JSONFormatter{}
	default:
		return &StandardFormatter{Context: 1}
	}
}

// GetDefaultVerbosity returns appropriate default based on environment
func GetDefaultVerbosity() VerbosityLevel {
	// Pre-commit hook context (GIT_AUTHOR_DATE set by git)
	if os.Getenv("GIT_AUTHOR_DATE") != "" {
		return VerbosityQuiet
	}

	// Editor and tool integrations
	if os.Getenv("SIDENOTE_JSON") == "1" {
		return VerbosityJSON
	}

	return VerbosityStandard
}
