package storage

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL, for teams sharing one
// comment set
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(ctx context.Context, dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{sqlStore{db: db, logger: logger}}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS files (
			url TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			file_url TEXT NOT NULL REFERENCES files(url) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			line_hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_file ON comments(file_url, position)`,
		`CREATE TABLE IF NOT EXISTS save_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at TIMESTAMPTZ NOT NULL,
			git_head TEXT NOT NULL DEFAULT '',
			comment_count INTEGER NOT NULL DEFAULT 0
		)`,
	}

	// pgx runs one statement per Exec in extended protocol
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
