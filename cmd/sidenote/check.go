package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/errors"
	"github.com/rohankatakam/sidenote/internal/output"
)

var (
	checkQuiet  bool
	checkJSON   bool
	checkNoDiff bool
	checkStrict bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report comments whose line changed since they were saved",
	Long: `Compare every comment's saved line against the current file content and
print one aggregated report. Nothing is written.

Exit codes with --strict: 0 when nothing drifted, 1 otherwise.`,
	RunE: runCheck,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Accept current lines as the new saved lines",
	Long: `Save every comment again so its saved line becomes the current one.
Comments that no longer resolve to a line are dropped.`,
	RunE: runSync,
}

func init() {
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "aggregated notice only")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "machine-readable output")
	checkCmd.Flags().BoolVar(&checkNoDiff, "no-diff", false, "omit line diffs")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit non-zero when any comment drifted")
}

func checkVerbosity() output.VerbosityLevel {
	switch {
	case checkJSON:
		return output.VerbosityJSON
	case checkQuiet:
		return output.VerbosityQuiet
	default:
		return output.GetDefaultVerbosity()
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	conflicts, err := s.load(ctx)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(checkVerbosity())
	if std, ok := formatter.(*output.StandardFormatter); ok {
		std.NoDiff = checkNoDiff
	}
	if err := formatter.Format(s.report(conflicts), cmd.OutOrStdout()); err != nil {
		return err
	}

	if n := s.dropped(); n > 0 {
		logger.WithField("comments", n).Warn("Some comments no longer resolve and will be dropped on the next save")
	}

	if checkStrict && !conflicts.Empty() {
		return errors.New(errors.ErrorTypeAnchor, errors.SeverityHigh,
			fmt.Sprintf("%d comment(s) drifted", conflicts.Len()))
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	conflicts, err := s.load(ctx)
	if err != nil {
		return err
	}
	dropped := s.dropped()

	meta, err := s.save(ctx, dropSkipped)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %d comment(s)", meta.Comments)
	if !conflicts.Empty() {
		fmt.Fprintf(out, ", accepted %d drifted line(s)", conflicts.Len())
	}
	if dropped > 0 {
		fmt.Fprintf(out, ", dropped %d unresolvable comment(s)", dropped)
	}
	fmt.Fprintln(out)
	return nil
}
