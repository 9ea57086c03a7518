package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = 1

// Format selects the encoding of an exported snapshot.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Snapshot is the portable form of a comment set.
type Snapshot struct {
	Version  int               `json:"version" yaml:"version"`
	Metadata *Metadata         `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Files    []anchor.FileNode `json:"files" yaml:"files"`
}

// FormatFromPath picks a format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want yaml or json)", s)
	}
}

// WriteSnapshot encodes snap to w.
func WriteSnapshot(w io.Writer, format Format, snap Snapshot) error {
	if snap.Version == 0 {
		snap.Version = SnapshotVersion
	}
	if snap.Files == nil {
		snap.Files = []anchor.FileNode{}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// ReadSnapshot decodes a snapshot from r.
func ReadSnapshot(r io.Reader, format Format) (*Snapshot, error) {
	var snap Snapshot
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&snap)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&snap)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", format, err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion)
	}
	seen := make(map[string]int, len(snap.Files))
	for i, node := range snap.Files {
		if node.URL == "" {
			return nil, fmt.Errorf("snapshot file %d has no url", i)
		}
		if first, ok := seen[node.URL]; ok {
			return nil, fmt.Errorf("snapshot lists %s more than once (files %d and %d)", node.URL, first, i)
		}
		seen[node.URL] = i
	}
	return &snap, nil
}
