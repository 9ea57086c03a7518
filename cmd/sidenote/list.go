package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list [file...]",
	Short: "List comments with the line each one points at",
	Long: `List tracked comments. Drifted comments are marked with '*'. Stored
comments whose file is missing or whose line no longer exists are marked
with '!' and have no ID; 'sidenote sync' drops them, 'sidenote forget' drops
those of one file.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(ctx); err != nil {
		return err
	}

	files := s.tracker.Files()
	if len(args) > 0 {
		files = files[:0]
		for _, arg := range args {
			file, err := s.provider.Locate(arg)
			if err != nil {
				return classify(err, "list comments")
			}
			files = append(files, file)
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	count := 0
	for _, file := range files {
		for _, c := range s.tracker.Comments(file) {
			count++
			line, text, err := s.tracker.Position(c)
			if err != nil {
				fmt.Fprintf(w, "!\t%s:?\t%s\t%s\n", s.provider.Rel(file), shortID(c.ID), c.Text)
				continue
			}
			mark := " "
			if text != c.Fingerprint {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\n", mark, s.provider.Rel(file), line+1, shortID(c.ID), c.Text)
		}
	}
	if len(args) == 0 {
		for _, node := range s.tracker.Skipped() {
			for _, rec := range node.Records {
				count++
				fmt.Fprintf(w, "!\t%s:?\t-\t%s\n", s.provider.Name(node.URL), rec.Text)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No comments.")
	}
	return nil
}
