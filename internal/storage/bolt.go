package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

const (
	filesBucket = "files"
	metaBucket  = "meta"
	lastSaveKey = "last_save"
)

// BoltStore keeps comments in a single bbolt file. Each file node is one
// JSON value keyed by its save position.
type BoltStore struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// NewBoltStore opens (or creates) the bbolt database at path
func NewBoltStore(path string, logger *logrus.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) LoadNodes(ctx context.Context) ([]anchor.FileNode, error) {
	var nodes []anchor.FileNode
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(filesBucket))
		if bucket == nil {
			return nil
		}
		// keys are big-endian positions, so cursor order is save order
		return bucket.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var node anchor.FileNode
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("decode node %d: %w", binary.BigEndian.Uint64(k), err)
			}
			nodes = append(nodes, node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) ReplaceNodes(ctx context.Context, nodes []anchor.FileNode, meta Metadata) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(filesBucket)) != nil {
			if err := tx.DeleteBucket([]byte(filesBucket)); err != nil {
				return err
			}
		}
		bucket, err := tx.CreateBucket([]byte(filesBucket))
		if err != nil {
			return err
		}

		for i, node := range nodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(node)
			if err != nil {
				return err
			}
			if err := bucket.Put(positionKey(i), data); err != nil {
				return err
			}
		}

		metaB, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		meta.SavedAt = meta.SavedAt.UTC()
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return metaB.Put([]byte(lastSaveKey), data)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"files":    len(nodes),
		"comments": meta.Comments,
	}).Debug("Replaced stored comments")
	return nil
}

func (s *BoltStore) Metadata(ctx context.Context) (*Metadata, error) {
	var meta *Metadata
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(metaBucket))
		if bucket == nil {
			return ErrNotFound
		}
		data := bucket.Get([]byte(lastSaveKey))
		if data == nil {
			return ErrNotFound
		}
		meta = &Metadata{}
		return json.Unmarshal(data, meta)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func positionKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}
