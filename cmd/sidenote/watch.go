package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/output"
	"github.com/rohankatakam/sidenote/internal/source"
	"github.com/rohankatakam/sidenote/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check comments whenever annotated files change",
	Long: `Watch the source root and print a drift report each time an annotated
file changes. Paths matched by .gitignore are not watched. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextWatch)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	formatter := &output.StandardFormatter{Context: 1}

	reload := func(ctx context.Context) (anchor.ConflictSet, map[string]bool, error) {
		conflicts, err := s.load(ctx)
		if err != nil {
			return conflicts, nil, err
		}
		tracked := make(map[string]bool)
		for _, f := range s.tracker.Files() {
			tracked[f] = true
		}
		return conflicts, tracked, nil
	}
	show := func(conflicts anchor.ConflictSet) error {
		return formatter.Format(s.report(conflicts), out)
	}

	conflicts, tracked, err := reload(ctx)
	var notReady *anchor.NotReadyError
	switch {
	case stderrors.As(err, &notReady):
		logger.WithError(err).Warn("Source not ready, waiting for changes")
		tracked = map[string]bool{}
	case err != nil:
		return err
	default:
		if err := show(conflicts); err != nil {
			return err
		}
	}

	ignorer := source.NewIgnorer(s.provider.Root())
	w, err := watch.New(watch.Options{
		Root:          s.provider.Root(),
		Ignorer:       ignorer,
		Debounce:      cfg.Watch.Debounce,
		RetryInterval: cfg.Watch.RetryInterval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	logger.WithFields(logrus.Fields{
		"root":        s.provider.Root(),
		"directories": w.Dirs(),
		"files":       len(tracked),
	}).Info("Watching for changes")

	interested := func(path string) bool {
		return !ignorer.Ignored(path, false)
	}
	onChange := func(ctx context.Context, paths []string) error {
		// Files may have been annotated by another process since the last
		// pass, so the store is re-read for every batch.
		conflicts, next, err := reload(ctx)
		if err != nil {
			return err
		}
		relevant := false
		for _, p := range paths {
			if tracked[p] || next[p] {
				relevant = true
				break
			}
		}
		tracked = next
		if !relevant {
			return nil
		}
		logger.WithField("changed", len(paths)).Debug("Re-checking annotated files")
		return show(conflicts)
	}

	err = w.Run(ctx, interested, onChange)
	if stderrors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Stopped watching.")
		return nil
	}
	return err
}
