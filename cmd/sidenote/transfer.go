package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/errors"
	"github.com/rohankatakam/sidenote/internal/git"
	"github.com/rohankatakam/sidenote/internal/storage"
)

var transferFormat string

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write stored comments as YAML or JSON",
	Long: `Write the stored comment records to path, or stdout when no path is given.
The format follows the file extension unless --format is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Replace stored comments with an exported snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&transferFormat, "format", "", "yaml or json")
	importCmd.Flags().StringVar(&transferFormat, "format", "", "yaml or json")
}

func resolveFormat(path string) (storage.Format, error) {
	if transferFormat != "" {
		f, err := storage.ParseFormat(transferFormat)
		if err != nil {
			return "", errors.ValidationErrorf("%v", err)
		}
		return f, nil
	}
	return storage.FormatFromPath(path), nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var path string
	if len(args) == 1 {
		path = args[0]
	}
	format, err := resolveFormat(path)
	if err != nil {
		return err
	}

	if err := cfg.Require(config.ValidationContextStore, logger.Logger); err != nil {
		return err
	}
	store, err := storage.Open(ctx, cfg.Storage, logger.Logger)
	if err != nil {
		return errors.StorageErrorf(err, "open %s store", cfg.Storage.Type)
	}
	defer store.Close()

	nodes, err := store.LoadNodes(ctx)
	if err != nil {
		return errors.StorageError(err, "load comments")
	}
	snap := storage.Snapshot{Files: nodes}
	if meta, err := store.Metadata(ctx); err == nil {
		snap.Metadata = meta
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return errors.StorageError(err, "load save metadata")
	}

	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.FileSystemErrorf(err, "create %s", filepath.Dir(path))
		}
		f, err := os.Create(path)
		if err != nil {
			return errors.FileSystemErrorf(err, "create %s", path)
		}
		defer f.Close()
		w = f
	}

	if err := storage.WriteSnapshot(w, format, snap); err != nil {
		return errors.FileSystemErrorf(err, "write snapshot")
	}

	logger.WithFields(logrus.Fields{
		"files":    len(nodes),
		"comments": storage.CountRecords(nodes),
		"format":   format,
	}).Debug("Exported comments")

	if path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d comment(s) to %s\n", storage.CountRecords(nodes), path)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	format, err := resolveFormat(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.FileSystemErrorf(err, "open %s", path)
	}
	defer f.Close()

	snap, err := storage.ReadSnapshot(f, format)
	if err != nil {
		return errors.ValidationErrorf("%v", err)
	}

	s, err := openSession(ctx, cfg, logger.Logger, config.ValidationContextStore)
	if err != nil {
		return err
	}
	defer s.Close()

	// Dry run through the tracker to report what the snapshot means for the
	// files on disk. Records are stored as given so drift stays visible.
	conflicts, err := s.tracker.Load(snap.Files)
	if err != nil {
		return classify(err, "import comments")
	}

	total := storage.CountRecords(snap.Files)
	meta := storage.Metadata{
		SavedAt:  time.Now().UTC(),
		GitHead:  git.HeadOrEmpty(ctx, s.provider.Root()),
		Comments: total,
	}
	if err := s.store.ReplaceNodes(ctx, snap.Files, meta); err != nil {
		return errors.StorageError(err, "import comments")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d comment(s) in %d file(s): %d drifted, %d unresolvable\n",
		total, len(snap.Files), conflicts.Len(), s.dropped())
	return nil
}
