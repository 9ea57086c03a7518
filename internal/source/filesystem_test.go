package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/lineindex"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		content string
		sep     string
		ok      bool
	}{
		{"a\nb", "\n", true},
		{"a\r\nb", "\r\n", true},
		{"a\rb", "\r", true},
		{"a\r", "\r", true},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		sep, ok := DetectSeparator([]byte(tt.content))
		assert.Equal(t, tt.sep, sep, "%q", tt.content)
		assert.Equal(t, tt.ok, ok, "%q", tt.content)
	}
}

func TestFilesystem_LocateAndURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pkg/a.go", "package pkg\n")

	fs, err := NewFilesystem(Options{Root: dir})
	require.NoError(t, err)
	require.NoError(t, fs.Ready())

	byRel, err := fs.Locate("pkg/a.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(path), byRel)

	u := fs.URL(byRel)
	assert.Contains(t, u, "file://")

	byURL, err := fs.Locate(u)
	require.NoError(t, err)
	assert.Equal(t, byRel, byURL)
	assert.Equal(t, "pkg/a.go", fs.Rel(byURL))

	_, err = fs.Locate("pkg/missing.go")
	var nf *anchor.FileNotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = fs.Locate("pkg")
	assert.ErrorAs(t, err, &nf)
}

func TestFilesystem_LineSeparatorLength(t *testing.T) {
	dir := t.TempDir()
	crlf := writeFile(t, dir, "crlf.txt", "a\r\nb\r\n")
	single := writeFile(t, dir, "single.txt", "no newline")

	strict, err := NewFilesystem(Options{Root: dir})
	require.NoError(t, err)

	n, err := strict.LineSeparatorLength(crlf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = strict.LineSeparatorLength(single)
	var malformed *lineindex.MalformedFileError
	assert.ErrorAs(t, err, &malformed)

	lenient, err := NewFilesystem(Options{Root: dir, DefaultSeparator: "\n"})
	require.NoError(t, err)
	n, err = lenient.LineSeparatorLength(single)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFilesystem_MaxFileBytes(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.txt", "0123456789\n")

	fs, err := NewFilesystem(Options{Root: dir, MaxFileBytes: 4})
	require.NoError(t, err)
	_, err = fs.RawContent(big)
	assert.Error(t, err)
}

func TestFilesystem_NotReady(t *testing.T) {
	fs, err := NewFilesystem(Options{Root: filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)
	assert.Error(t, fs.Ready())
}

func TestFilesystem_WithTracker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Title\n\nbody line\n")

	fs, err := NewFilesystem(Options{Root: dir})
	require.NoError(t, err)
	tr := anchor.NewTracker(fs, nil)

	_, err = tr.AddAtLine("notes.md", 3, "expand this")
	require.NoError(t, err)
	nodes, err := tr.Save()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "body line", nodes[0].Records[0].LineHash)

	writeFile(t, dir, "notes.md", "# Title\n\nbody line, edited\n")
	conflicts, err := anchor.NewTracker(fs, nil).Load(nodes)
	require.NoError(t, err)
	require.Equal(t, 1, conflicts.Len())
	assert.Equal(t, "body line, edited", conflicts.Conflicts[0].NewLine)
}

func TestIgnorer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "# build output\n*.log\nbuild\n")

	ig := NewIgnorer(dir)
	assert.True(t, ig.Ignored(filepath.Join(dir, "debug.log"), false))
	assert.True(t, ig.Ignored(filepath.Join(dir, "build"), true))
	assert.True(t, ig.Ignored(filepath.Join(dir, ".git"), true))
	assert.False(t, ig.Ignored(filepath.Join(dir, "main.go"), false))
}

func TestFilesystem_RelKeepsDotDotNames(t *testing.T) {
	dir := t.TempDir()
	inside := writeFile(t, dir, "..notes", "x\n")

	fs, err := NewFilesystem(Options{Root: dir})
	require.NoError(t, err)
	assert.Equal(t, "..notes", fs.Rel(inside))

	outsidePath := filepath.Join(filepath.Dir(dir), "elsewhere.txt")
	assert.Equal(t, outsidePath, fs.Rel(outsidePath))
}

func TestFilesystem_URLForMissingFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFilesystem(Options{Root: dir})
	require.NoError(t, err)

	u, err := fs.URLFor("gone/a.go")
	require.NoError(t, err)
	assert.Equal(t, fs.URL(filepath.Join(fs.Root(), "gone", "a.go")), u)

	same, err := fs.URLFor(u)
	require.NoError(t, err)
	assert.Equal(t, u, same)

	_, err = fs.URLFor("")
	assert.Error(t, err)

	assert.Equal(t, "gone/a.go", fs.Name(u))
}

func TestIgnorer_DotDotNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "..cache\n")

	ig := NewIgnorer(dir)
	assert.True(t, ig.Ignored(filepath.Join(dir, "..cache"), false))
	assert.False(t, ig.Ignored(filepath.Join(filepath.Dir(dir), "..cache"), false))
}
