// Package anchor tracks comments attached to lines of files and detects when
// the line a comment points at has changed since it was last saved.
package anchor

import (
	"fmt"
	"sort"
	"strings"
)

// Record is the persisted form of one comment. LineHash is the exact text of
// the anchored line at the time of the last save.
type Record struct {
	Text        string `json:"text" yaml:"text" db:"text"`
	StartOffset int    `json:"start_offset" yaml:"start_offset" db:"start_offset"`
	LineHash    string `json:"line_hash" yaml:"line_hash" db:"line_hash"`
}

// FileNode groups the records of one file under its stable URL.
type FileNode struct {
	URL     string   `json:"url" yaml:"url"`
	Records []Record `json:"comments" yaml:"comments"`
}

// Comment is a live annotation owned by the Tracker.
type Comment struct {
	ID          string
	File        string // file identity as returned by ContentProvider.Locate
	Text        string
	Offset      int
	Fingerprint string
}

// Conflict reports a comment whose anchored line no longer matches the
// fingerprint stored with it.
type Conflict struct {
	CommentText string
	File        string
	LineNumber  int // 0-based
	OldLine     string
	NewLine     string
}

// ConflictSet is the aggregated result of a load pass.
type ConflictSet struct {
	Conflicts []Conflict
}

// Len returns the number of conflicts.
func (s ConflictSet) Len() int { return len(s.Conflicts) }

// Empty reports whether no drift was detected.
func (s ConflictSet) Empty() bool { return len(s.Conflicts) == 0 }

func (s *ConflictSet) add(c Conflict) { s.Conflicts = append(s.Conflicts, c) }

// ByFile groups conflicts by file, keeping their order within each file.
func (s ConflictSet) ByFile() map[string][]Conflict {
	out := make(map[string][]Conflict)
	for _, c := range s.Conflicts {
		out[c.File] = append(out[c.File], c)
	}
	return out
}

// Files returns the distinct files with conflicts, sorted.
func (s ConflictSet) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, c := range s.Conflicts {
		if _, ok := seen[c.File]; ok {
			continue
		}
		seen[c.File] = struct{}{}
		files = append(files, c.File)
	}
	sort.Strings(files)
	return files
}

// Summary renders the single aggregated notification shown to the user.
// name maps file identities to display names; nil shows them as is.
func (s ConflictSet) Summary(name func(string) string) string {
	if s.Empty() {
		return ""
	}
	if name == nil {
		name = func(file string) string { return file }
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d comment(s) point at lines that changed:\n", s.Len())
	for _, c := range s.Conflicts {
		fmt.Fprintf(&sb, "  %s:%d %q\n", name(c.File), c.LineNumber+1, c.CommentText)
	}
	return sb.String()
}
