package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL backends.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

type fileRow struct {
	URL      string `db:"url"`
	Position int    `db:"position"`
}

type commentRow struct {
	FileURL     string `db:"file_url"`
	Position    int    `db:"position"`
	Text        string `db:"text"`
	StartOffset int    `db:"start_offset"`
	LineHash    string `db:"line_hash"`
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) LoadNodes(ctx context.Context) ([]anchor.FileNode, error) {
	var files []fileRow
	if err := s.db.SelectContext(ctx, &files, `SELECT url, position FROM files ORDER BY position`); err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}

	var comments []commentRow
	query := `SELECT file_url, position, text, start_offset, line_hash FROM comments ORDER BY file_url, position`
	if err := s.db.SelectContext(ctx, &comments, query); err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}

	byFile := make(map[string][]anchor.Record, len(files))
	for _, c := range comments {
		byFile[c.FileURL] = append(byFile[c.FileURL], anchor.Record{
			Text:        c.Text,
			StartOffset: c.StartOffset,
			LineHash:    c.LineHash,
		})
	}

	nodes := make([]anchor.FileNode, 0, len(files))
	for _, f := range files {
		nodes = append(nodes, anchor.FileNode{URL: f.URL, Records: byFile[f.URL]})
	}
	return nodes, nil
}

func (s *sqlStore) ReplaceNodes(ctx context.Context, nodes []anchor.FileNode, meta Metadata) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments`); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}

	insertFile := tx.Rebind(`INSERT INTO files (url, position) VALUES (?, ?)`)
	insertComment := tx.Rebind(`
		INSERT INTO comments (file_url, position, text, start_offset, line_hash)
		VALUES (?, ?, ?, ?, ?)
	`)

	for i, node := range nodes {
		if _, err := tx.ExecContext(ctx, insertFile, node.URL, i); err != nil {
			return fmt.Errorf("insert file %s: %w", node.URL, err)
		}
		for j, rec := range node.Records {
			_, err := tx.ExecContext(ctx, insertComment,
				node.URL, j, rec.Text, rec.StartOffset, rec.LineHash)
			if err != nil {
				return fmt.Errorf("insert comment %d of %s: %w", j, node.URL, err)
			}
		}
	}

	upsertMeta := tx.Rebind(`
		INSERT INTO save_metadata (id, saved_at, git_head, comment_count)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			saved_at = EXCLUDED.saved_at,
			git_head = EXCLUDED.git_head,
			comment_count = EXCLUDED.comment_count
	`)
	if _, err := tx.ExecContext(ctx, upsertMeta, meta.SavedAt.UTC(), meta.GitHead, meta.Comments); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"files":    len(nodes),
		"comments": meta.Comments,
	}).Debug("Replaced stored comments")
	return nil
}

func (s *sqlStore) Metadata(ctx context.Context) (*Metadata, error) {
	var meta Metadata
	query := `SELECT saved_at, git_head, comment_count FROM save_metadata WHERE id = 1`
	err := s.db.GetContext(ctx, &meta, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}
