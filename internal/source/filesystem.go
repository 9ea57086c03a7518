// Package source serves file snapshots from the local filesystem to the
// anchor tracker.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/lineindex"
)

const fileScheme = "file://"

// Options configures a Filesystem provider.
type Options struct {
	// Root anchors relative paths and must exist for the provider to be ready.
	Root string
	// DefaultSeparator is used for files without any line terminator.
	// Empty means such files are malformed.
	DefaultSeparator string
	// MaxFileBytes rejects larger files (0 = no limit).
	MaxFileBytes int64
}

// Filesystem implements anchor.ContentProvider over the local disk.
// File identities are cleaned absolute paths.
type Filesystem struct {
	root         string
	defaultSep   string
	maxFileBytes int64
}

// NewFilesystem creates a provider rooted at opts.Root.
func NewFilesystem(opts Options) (*Filesystem, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	return &Filesystem{
		root:         abs,
		defaultSep:   opts.DefaultSeparator,
		maxFileBytes: opts.MaxFileBytes,
	}, nil
}

// Root returns the absolute root directory.
func (fs *Filesystem) Root() string { return fs.root }

// Ready reports whether the root directory can be read.
func (fs *Filesystem) Ready() error {
	info, err := os.Stat(fs.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", fs.root)
	}
	return nil
}

// Locate accepts a file:// URL, an absolute path or a path relative to the
// root, and returns the file's absolute path.
func (fs *Filesystem) Locate(u string) (string, error) {
	path, err := fs.pathOf(u)
	if err != nil {
		return "", &anchor.FileNotFoundError{URL: u, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", &anchor.FileNotFoundError{URL: u, Err: err}
	}
	if info.IsDir() {
		return "", &anchor.FileNotFoundError{URL: u, Err: errors.New("is a directory")}
	}
	return path, nil
}

func (fs *Filesystem) pathOf(u string) (string, error) {
	if strings.HasPrefix(u, fileScheme) {
		parsed, err := url.Parse(u)
		if err != nil {
			return "", err
		}
		return filepath.Clean(filepath.FromSlash(parsed.Path)), nil
	}
	if u == "" {
		return "", errors.New("empty path")
	}
	p := filepath.FromSlash(u)
	if !filepath.IsAbs(p) {
		p = filepath.Join(fs.root, p)
	}
	return filepath.Clean(p), nil
}

// URLFor returns the file:// URL of u without requiring the file to exist.
func (fs *Filesystem) URLFor(u string) (string, error) {
	path, err := fs.pathOf(u)
	if err != nil {
		return "", err
	}
	return fs.URL(path), nil
}

// Name returns the root-relative name behind u, even when the file is gone.
func (fs *Filesystem) Name(u string) string {
	path, err := fs.pathOf(u)
	if err != nil {
		return u
	}
	return fs.Rel(path)
}

// URL returns the file:// URL of an absolute path.
func (fs *Filesystem) URL(file string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(file)}
	return u.String()
}

// Rel returns file relative to the root when it lies under it.
func (fs *Filesystem) Rel(file string) string {
	rel, err := filepath.Rel(fs.root, file)
	if err != nil || outside(rel) {
		return file
	}
	return filepath.ToSlash(rel)
}

// outside reports whether a path produced by filepath.Rel leaves its base.
func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RawContent reads the current bytes of file.
func (fs *Filesystem) RawContent(file string) ([]byte, error) {
	if fs.maxFileBytes > 0 {
		info, err := os.Stat(file)
		if err != nil {
			return nil, err
		}
		if info.Size() > fs.maxFileBytes {
			return nil, fmt.Errorf("%s is %d bytes, limit is %d", file, info.Size(), fs.maxFileBytes)
		}
	}
	return os.ReadFile(file)
}

// LineSeparatorLength detects the separator from the first line terminator
// of file, falling back to the configured default.
func (fs *Filesystem) LineSeparatorLength(file string) (int, error) {
	content, err := fs.RawContent(file)
	if err != nil {
		return 0, err
	}
	if sep, ok := DetectSeparator(content); ok {
		return len(sep), nil
	}
	if fs.defaultSep != "" {
		return len(fs.defaultSep), nil
	}
	return 0, &lineindex.MalformedFileError{Reason: fmt.Sprintf("%s has no line separator", file)}
}

// DetectSeparator returns the first line terminator found in content.
func DetectSeparator(content []byte) (string, bool) {
	i := bytes.IndexAny(content, "\r\n")
	if i < 0 {
		return "", false
	}
	if content[i] == '\n' {
		return "\n", true
	}
	if i+1 < len(content) && content[i+1] == '\n' {
		return "\r\n", true
	}
	return "\r", true
}
