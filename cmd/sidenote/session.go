package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/config"
	"github.com/rohankatakam/sidenote/internal/errors"
	"github.com/rohankatakam/sidenote/internal/git"
	"github.com/rohankatakam/sidenote/internal/lineindex"
	"github.com/rohankatakam/sidenote/internal/output"
	"github.com/rohankatakam/sidenote/internal/source"
	"github.com/rohankatakam/sidenote/internal/storage"
)

// session wires the filesystem provider, the tracker and the store for one
// command invocation.
type session struct {
	cfg      *config.Config
	logger   *logrus.Logger
	provider *source.Filesystem
	tracker  *anchor.Tracker
	store    storage.Store
}

// savePolicy decides what happens to stored records the last load could not
// place (unreadable files, offsets past the end).
type savePolicy int

const (
	// keepSkipped writes them back unchanged.
	keepSkipped savePolicy = iota
	// dropSkipped leaves them out of the store.
	dropSkipped
)

func openSession(ctx context.Context, cfg *config.Config, logger *logrus.Logger, vctx config.ValidationContext) (*session, error) {
	if err := cfg.Require(vctx, logger); err != nil {
		return nil, err
	}

	provider, err := source.NewFilesystem(source.Options{
		Root:             cfg.Source.Root,
		DefaultSeparator: cfg.Source.DefaultSeparator,
		MaxFileBytes:     cfg.Source.MaxFileBytes,
	})
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "open source root").WithContext("root", cfg.Source.Root)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, errors.StorageErrorf(err, "open %s store", cfg.Storage.Type).
			WithContext("path", cfg.Storage.LocalPath)
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		tracker:  anchor.NewTracker(provider, logger),
		store:    store,
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// load reads the stored records into the tracker and returns the drift.
func (s *session) load(ctx context.Context) (anchor.ConflictSet, error) {
	nodes, err := s.store.LoadNodes(ctx)
	if err != nil {
		return anchor.ConflictSet{}, errors.StorageError(err, "load comments")
	}
	conflicts, err := s.tracker.Load(nodes)
	if err != nil {
		return conflicts, classify(err, "load comments")
	}
	return conflicts, nil
}

// save persists the tracker with refreshed fingerprints.
func (s *session) save(ctx context.Context, policy savePolicy) (*storage.Metadata, error) {
	nodes, err := s.tracker.Save()
	if err != nil {
		return nil, classify(err, "save comments")
	}
	if policy == keepSkipped {
		nodes = mergeNodes(nodes, s.tracker.Skipped())
	}
	meta := storage.Metadata{
		SavedAt:  time.Now().UTC(),
		GitHead:  git.HeadOrEmpty(ctx, s.provider.Root()),
		Comments: storage.CountRecords(nodes),
	}
	if err := s.store.ReplaceNodes(ctx, nodes, meta); err != nil {
		return nil, errors.StorageError(err, "save comments")
	}
	return &meta, nil
}

// dropped is the number of stored comments the last load could not place.
func (s *session) dropped() int {
	return storage.CountRecords(s.tracker.Skipped())
}

// warnKept tells the user about stored comments written back untouched.
func (s *session) warnKept(w io.Writer) {
	n := s.dropped()
	if n == 0 {
		return
	}
	logger.WithField("comments", n).Warn("Kept comments that no longer resolve")
	fmt.Fprintf(w, "Kept %d comment(s) of missing or changed files as stored (run 'sidenote check')\n", n)
}

// mergeNodes appends the records of extra to nodes, joining nodes that share
// a URL.
func mergeNodes(nodes, extra []anchor.FileNode) []anchor.FileNode {
	pos := make(map[string]int, len(nodes))
	for i, node := range nodes {
		pos[node.URL] = i
	}
	for _, node := range extra {
		if i, ok := pos[node.URL]; ok {
			nodes[i].Records = append(nodes[i].Records, node.Records...)
			continue
		}
		pos[node.URL] = len(nodes)
		nodes = append(nodes, node)
	}
	return nodes
}

// commentCount returns the number of comments currently tracked.
func (s *session) commentCount() int {
	n := 0
	for _, file := range s.tracker.Files() {
		n += len(s.tracker.Comments(file))
	}
	return n
}

func (s *session) report(conflicts anchor.ConflictSet) *output.Report {
	return &output.Report{
		Conflicts:   conflicts,
		Comments:    s.commentCount(),
		DisplayName: s.provider.Rel,
	}
}

// classify maps tracker and index errors onto the CLI error categories.
func classify(err error, message string) *errors.Error {
	var (
		notFound  *anchor.FileNotFoundError
		notReady  *anchor.NotReadyError
		cnf       *anchor.CommentNotFoundError
		oor       *lineindex.OffsetOutOfRangeError
		lnf       *lineindex.LineNotFoundError
		malformed *lineindex.MalformedFileError
	)
	switch {
	case stderrors.As(err, &notReady):
		return errors.Wrap(err, errors.ErrorTypeFileSystem, errors.SeverityMedium, message)
	case stderrors.As(err, &notFound):
		return errors.FileSystemErrorf(err, "%s", message)
	case stderrors.As(err, &cnf), stderrors.As(err, &lnf) && lnf.Offset < 0:
		return errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, message)
	case stderrors.As(err, &oor), stderrors.As(err, &lnf), stderrors.As(err, &malformed):
		return errors.AnchorError(err, message)
	default:
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, message)
	}
}
