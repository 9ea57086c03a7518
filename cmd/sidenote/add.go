package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/errors"
)

var addOffset bool

var addCmd = &cobra.Command{
	Use:   "add <file> <line> <text...>",
	Short: "Attach a comment to a line",
	Long: `Attach a comment to a 1-based line of a file. With --offset the second
argument is a byte offset into the file instead.

Examples:
  sidenote add internal/server.go 42 "retry budget comes from config"
  sidenote add --offset README.md 120 check this link`,
	Args: cobra.MinimumNArgs(3),
	RunE: runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove comments by ID (a unique prefix of 4+ characters is enough)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <file>...",
	Short: "Stop tracking files and drop all of their comments",
	Long: `Drop every comment of the given files, including files that were deleted
or moved since their comments were saved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runForget,
}

func init() {
	addCmd.Flags().BoolVar(&addOffset, "offset", false, "treat the position as a byte offset")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.ValidationErrorf("invalid position %q: must be a number", args[1])
	}
	if !addOffset && pos < 1 {
		return errors.ValidationErrorf("line numbers start at 1, got %d", pos)
	}
	text := strings.Join(args[2:], " ")
	if strings.TrimSpace(text) == "" {
		return errors.ValidationErrorf("comment text is empty")
	}

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	conflicts, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !conflicts.Empty() {
		logger.WithField("conflicts", conflicts.Len()).Warn("Some comments have drifted, run 'sidenote check'")
	}

	var c *anchor.Comment
	if addOffset {
		c, err = s.tracker.Add(args[0], pos, text)
	} else {
		c, err = s.tracker.AddAtLine(args[0], pos, text)
	}
	if err != nil {
		return classify(err, "add comment").
			WithContext("file", args[0]).
			WithContext("position", pos)
	}

	if _, err := s.save(ctx, keepSkipped); err != nil {
		return err
	}
	s.warnKept(cmd.ErrOrStderr())

	line, _, err := s.tracker.Position(*c)
	if err != nil {
		return classify(err, "add comment")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s at %s:%d\n", shortID(c.ID), s.provider.Rel(c.File), line+1)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(ctx); err != nil {
		return err
	}

	var removed []*anchor.Comment
	for _, id := range args {
		c, err := s.tracker.Remove(id)
		if err != nil {
			return classify(err, "remove comment").WithContext("id", id)
		}
		removed = append(removed, c)
	}

	if _, err := s.save(ctx, keepSkipped); err != nil {
		return err
	}
	s.warnKept(cmd.ErrOrStderr())

	for _, c := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s: %q\n", shortID(c.ID), s.provider.Rel(c.File), c.Text)
	}
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(ctx); err != nil {
		return err
	}

	counts := make([]int, len(args))
	for i, arg := range args {
		url, err := s.provider.URLFor(arg)
		if err != nil {
			return errors.ValidationErrorf("invalid file %q: %v", arg, err)
		}
		counts[i] = s.tracker.Forget(url)
		if counts[i] == 0 {
			return errors.ValidationErrorf("%s has no comments", arg)
		}
	}

	if _, err := s.save(ctx, keepSkipped); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, arg := range args {
		fmt.Fprintf(out, "Forgot %d comment(s) of %s\n", counts[i], arg)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
