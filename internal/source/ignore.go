package source

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// alwaysIgnored directories are never watched.
var alwaysIgnored = map[string]bool{
	".git":         true,
	".sidenote":    true,
	"node_modules": true,
	"vendor":       true,
}

// Ignorer filters paths under a root using its .gitignore.
type Ignorer struct {
	root string
	gi   *ignore.GitIgnore
}

// NewIgnorer loads <root>/.gitignore if present.
func NewIgnorer(root string) *Ignorer {
	ig := &Ignorer{root: root}
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ig
	}
	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) > 0 {
		ig.gi = ignore.CompileIgnoreLines(patterns...)
	}
	return ig
}

// Ignored reports whether path should be skipped.
func (ig *Ignorer) Ignored(path string, isDir bool) bool {
	if alwaysIgnored[filepath.Base(path)] && isDir {
		return true
	}
	if ig.gi == nil {
		return false
	}
	rel, err := filepath.Rel(ig.root, path)
	if err != nil || outside(rel) {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return ig.gi.MatchesPath(rel)
}
