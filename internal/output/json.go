package output

import (
	"encoding/json"
	"io"
)

// JSONOutput is the schema written by JSONFormatter.
type JSONOutput struct {
	Comments  int            `json:"comments"`
	Drifted   int            `json:"drifted"`
	Conflicts []JSONConflict `json:"conflicts"`
}

// JSONConflict is one drifted comment. Line is 1-based.
type JSONConflict struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
	OldLine string `json:"old_line"`
	NewLine string `json:"new_line"`
}

// JSONFormatter emits the report for editor and tool integrations.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(report *Report, w io.Writer) error {
	out := JSONOutput{
		Comments:  report.Comments,
		Drifted:   report.Conflicts.Len(),
		Conflicts: make([]JSONConflict, 0, report.Conflicts.Len()),
	}
	for _, c := range report.Conflicts.Conflicts {
		out.Conflicts = append(out.Conflicts, JSONConflict{
			File:    report.name(c.File),
			Line:    c.LineNumber + 1,
			Comment: c.CommentText,
			OldLine: c.OldLine,
			NewLine: c.NewLine,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
