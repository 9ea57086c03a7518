package output

import (
	"fmt"
	"io"
)

// QuietFormatter outputs the aggregated drift notice only (for pre-commit hooks)
type QuietFormatter struct{}

func (f *QuietFormatter) Format(report *Report, w io.Writer) error {
	if report.Conflicts.Empty() {
		_, err := fmt.Fprintf(w, "ok: %d comment(s), no drift\n", report.Comments)
		return err
	}

	_, err := fmt.Fprintf(w, "%sRun 'sidenote check' for details\n", report.Conflicts.Summary(report.name))
	return err
}
