package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// StandardFormatter lists conflicts per file, each with a unified diff of
// the stored line against the current one.
type StandardFormatter struct {
	// Context is the number of context lines in each hunk.
	Context int
	// NoDiff prints only the conflict headers.
	NoDiff bool
}

func (f *StandardFormatter) Format(report *Report, w io.Writer) error {
	set := report.Conflicts
	if set.Empty() {
		_, err := fmt.Fprintf(w, "No drift: %d comment(s) still match their lines.\n", report.Comments)
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d of %d comment(s) point at lines that changed\n", set.Len(), report.Comments))

	byFile := set.ByFile()
	for _, file := range set.Files() {
		name := report.name(file)
		sb.WriteString(fmt.Sprintf("\n%s\n", name))
		for _, c := range byFile[file] {
			sb.WriteString(fmt.Sprintf("  line %d: %q\n", c.LineNumber+1, c.CommentText))
			if f.NoDiff {
				continue
			}
			sb.WriteString(indent(LineDiff(name, c.LineNumber, c.OldLine, c.NewLine, f.Context), "    "))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// LineDiff renders a one-line unified diff. line is 0-based.
func LineDiff(name string, line int, oldLine, newLine string, context int) string {
	u := difflib.UnifiedDiff{
		A:        []string{oldLine + "\n"},
		B:        []string{newLine + "\n"},
		FromFile: "saved/" + name,
		ToFile:   "current/" + name,
		Context:  context,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return fmt.Sprintf("- %s\n+ %s\n", oldLine, newLine)
	}
	return renumber(s, line+1)
}

// renumber rewrites the hunk header so it points at the real line number.
func renumber(diff string, line int) string {
	return strings.Replace(diff, "@@ -1 +1 @@", fmt.Sprintf("@@ -%d +%d @@", line, line), 1)
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(l)
	}
	return sb.String()
}
