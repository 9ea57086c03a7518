package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/config"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleNodes() []anchor.FileNode {
	return []anchor.FileNode{
		{URL: "file:///repo/z.go", Records: []anchor.Record{
			{Text: "first", StartOffset: 0, LineHash: "package z"},
			{Text: "second", StartOffset: 10, LineHash: "func Z() {}"},
		}},
		{URL: "file:///repo/a.go", Records: []anchor.Record{
			{Text: "only", StartOffset: 4, LineHash: "x = 1"},
		}},
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "sub", "comments.db"), testLogger())
	require.NoError(t, err)
	bolt, err := NewBoltStore(filepath.Join(dir, "comments.bolt"), testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlite.Close()
		bolt.Close()
	})
	stores := map[string]Store{"sqlite": sqlite, "bolt": bolt}
	if pg := openPostgres(t); pg != nil {
		stores["postgres"] = pg
	}
	return stores
}

// openPostgres connects to the throwaway database named by
// SIDENOTE_TEST_POSTGRES_DSN and empties it. Nil when the variable is unset.
func openPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("SIDENOTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		return nil
	}
	pg, err := NewPostgresStore(context.Background(), dsn, testLogger())
	require.NoError(t, err)
	_, err = pg.db.Exec("TRUNCATE comments, files, save_metadata")
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })
	return pg
}

func TestStore_EmptyBeforeFirstSave(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			nodes, err := store.LoadNodes(ctx)
			require.NoError(t, err)
			assert.Empty(t, nodes)

			_, err = store.Metadata(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ReplaceAndLoadKeepsOrder(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			nodes := sampleNodes()
			savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			err := store.ReplaceNodes(ctx, nodes, Metadata{SavedAt: savedAt, GitHead: "abc123", Comments: CountRecords(nodes)})
			require.NoError(t, err)

			loaded, err := store.LoadNodes(ctx)
			require.NoError(t, err)
			assert.Equal(t, nodes, loaded)

			meta, err := store.Metadata(ctx)
			require.NoError(t, err)
			assert.True(t, savedAt.Equal(meta.SavedAt), "saved_at %v", meta.SavedAt)
			assert.Equal(t, "abc123", meta.GitHead)
			assert.Equal(t, 3, meta.Comments)
		})
	}
}

func TestStore_ReplaceDropsPreviousSet(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.ReplaceNodes(ctx, sampleNodes(), Metadata{SavedAt: time.Now(), Comments: 3}))

			next := []anchor.FileNode{{URL: "file:///repo/new.go", Records: []anchor.Record{
				{Text: "fresh", StartOffset: 2, LineHash: "y"},
			}}}
			require.NoError(t, store.ReplaceNodes(ctx, next, Metadata{SavedAt: time.Now(), Comments: 1}))

			loaded, err := store.LoadNodes(ctx)
			require.NoError(t, err)
			assert.Equal(t, next, loaded)

			require.NoError(t, store.ReplaceNodes(ctx, nil, Metadata{SavedAt: time.Now()}))
			loaded, err = store.LoadNodes(ctx)
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestStore_MetadataFollowsLatestSave(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			second := first.Add(90 * time.Minute)

			require.NoError(t, store.ReplaceNodes(ctx, sampleNodes(), Metadata{SavedAt: first, GitHead: "aaa", Comments: 3}))
			require.NoError(t, store.ReplaceNodes(ctx, nil, Metadata{SavedAt: second, Comments: 0}))

			meta, err := store.Metadata(ctx)
			require.NoError(t, err)
			assert.True(t, second.Equal(meta.SavedAt), "saved_at %v", meta.SavedAt)
			assert.Equal(t, "", meta.GitHead)
			assert.Equal(t, 0, meta.Comments)
		})
	}
}

func TestOpen_Postgres(t *testing.T) {
	dsn := os.Getenv("SIDENOTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SIDENOTE_TEST_POSTGRES_DSN not set")
	}

	store, err := Open(context.Background(), config.StorageConfig{Type: "postgres", PostgresDSN: dsn}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, store)
	require.NoError(t, store.Close())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Type: "bolt", LocalPath: filepath.Join(dir, "x.bolt")}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, config.StorageConfig{Type: "sqlite", LocalPath: filepath.Join(dir, "x.db")}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.StorageConfig{Type: "mongo"}, testLogger())
	assert.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	meta := &Metadata{SavedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), GitHead: "deadbeef", Comments: 3}

	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteSnapshot(&buf, format, Snapshot{Metadata: meta, Files: sampleNodes()}))

			snap, err := ReadSnapshot(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, SnapshotVersion, snap.Version)
			assert.Equal(t, sampleNodes(), snap.Files)
			require.NotNil(t, snap.Metadata)
			assert.Equal(t, "deadbeef", snap.Metadata.GitHead)
			assert.True(t, meta.SavedAt.Equal(snap.Metadata.SavedAt))
		})
	}
}

func TestSnapshot_YAMLFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, FormatYAML, Snapshot{Files: sampleNodes()[1:]}))

	out := buf.String()
	assert.Contains(t, out, "url: file:///repo/a.go")
	assert.Contains(t, out, "start_offset: 4")
	assert.Contains(t, out, "line_hash: x = 1")
}

func TestReadSnapshot_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"newer version", "version: 99\nfiles: []\n", "newer"},
		{"missing url", "version: 1\nfiles:\n  - comments: []\n", "no url"},
		{"garbage", "{{{", "decode"},
		{"duplicate url", "version: 1\nfiles:\n  - url: file:///a.txt\n  - url: file:///b.txt\n  - url: file:///a.txt\n", "more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSnapshot(bytes.NewBufferString(tt.input), FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("out/notes.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("notes.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("notes"))

	f, err := ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)
}
