// Package storage persists the per-file comment records produced by the
// anchor tracker.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Metadata describes the last successful save.
type Metadata struct {
	SavedAt  time.Time `db:"saved_at" json:"saved_at" yaml:"saved_at"`
	GitHead  string    `db:"git_head" json:"git_head,omitempty" yaml:"git_head,omitempty"`
	Comments int       `db:"comment_count" json:"comments" yaml:"comments"`
}

// Store defines the storage interface
type Store interface {
	// LoadNodes returns the persisted files in the order they were saved.
	LoadNodes(ctx context.Context) ([]anchor.FileNode, error)

	// ReplaceNodes atomically swaps the persisted set for nodes.
	ReplaceNodes(ctx context.Context, nodes []anchor.FileNode, meta Metadata) error

	// Metadata returns ErrNotFound before the first save.
	Metadata(ctx context.Context) (*Metadata, error)

	// Close connection
	Close() error
}

// CountRecords returns the number of records across nodes.
func CountRecords(nodes []anchor.FileNode) int {
	n := 0
	for _, node := range nodes {
		n += len(node.Records)
	}
	return n
}
