package anchor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/lineindex"
)

// Tracker owns the registry of comments per file.
//
// Load is tolerant: unreadable files and unresolvable records are logged and
// skipped. Save is strict: any comment that no longer resolves fails the
// whole pass and nothing is returned.
type Tracker struct {
	provider ContentProvider
	logger   logrus.FieldLogger

	mu       sync.Mutex
	files    []string // tracked files in insertion order
	comments map[string][]*Comment
	skipped  []FileNode // records the last Load could not place
}

// NewTracker creates an empty Tracker.
func NewTracker(provider ContentProvider, logger logrus.FieldLogger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tracker{
		provider: provider,
		logger:   logger,
		comments: make(map[string][]*Comment),
	}
}

func (t *Tracker) ready() error {
	rc, ok := t.provider.(ReadinessChecker)
	if !ok {
		return nil
	}
	if err := rc.Ready(); err != nil {
		return &NotReadyError{Reason: err.Error()}
	}
	return nil
}

// Load replaces the registry with the given records and returns the
// conflicts found between stored fingerprints and current line content.
// The only error it returns is *NotReadyError.
func (t *Tracker) Load(nodes []FileNode) (ConflictSet, error) {
	var conflicts ConflictSet
	if err := t.ready(); err != nil {
		return conflicts, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.files = nil
	t.comments = make(map[string][]*Comment)
	t.skipped = nil

	for _, node := range nodes {
		log := t.logger.WithField("url", node.URL)

		file, err := t.provider.Locate(node.URL)
		if err != nil {
			log.WithError(err).Warn("Skipping comments of missing file")
			t.skip(node.URL, node.Records...)
			continue
		}
		idx, err := t.buildIndex(file)
		if err != nil {
			log.WithError(err).Warn("Skipping comments of unreadable file")
			t.skip(node.URL, node.Records...)
			continue
		}

		for _, rec := range node.Records {
			text, line, err := idx.Resolve(rec.StartOffset)
			if err != nil {
				log.WithError(err).WithField("offset", rec.StartOffset).Warn("Skipping unresolvable comment")
				t.skip(node.URL, rec)
				continue
			}
			t.track(file, &Comment{
				ID:          commentID(t.provider.URL(file), rec.StartOffset, rec.Text),
				File:        file,
				Text:        rec.Text,
				Offset:      rec.StartOffset,
				Fingerprint: rec.LineHash,
			})
			if text != rec.LineHash {
				conflicts.add(Conflict{
					CommentText: rec.Text,
					File:        file,
					LineNumber:  line,
					OldLine:     rec.LineHash,
					NewLine:     text,
				})
			}
		}
	}

	t.logger.WithFields(logrus.Fields{
		"files":     len(t.files),
		"conflicts": conflicts.Len(),
		"skipped":   len(t.skipped),
	}).Debug("Loaded comments")

	return conflicts, nil
}

// Save resolves every live comment against current file content and returns
// the records to persist, with fingerprints refreshed to the current lines.
func (t *Tracker) Save() ([]FileNode, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := make([]FileNode, 0, len(t.files))
	fresh := make(map[*Comment]string)
	for _, file := range t.files {
		list := t.comments[file]
		if len(list) == 0 {
			continue
		}
		idx, err := t.buildIndex(file)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", t.provider.URL(file), err)
		}

		node := FileNode{URL: t.provider.URL(file), Records: make([]Record, 0, len(list))}
		for _, c := range list {
			text, _, err := idx.Resolve(c.Offset)
			if err != nil {
				return nil, fmt.Errorf("save %s: comment %s: %w", node.URL, c.ID, err)
			}
			fresh[c] = text
			node.Records = append(node.Records, Record{
				Text:        c.Text,
				StartOffset: c.Offset,
				LineHash:    text,
			})
		}
		nodes = append(nodes, node)
	}

	for c, text := range fresh {
		c.Fingerprint = text
	}
	return nodes, nil
}

// Add attaches a comment at a byte offset of the file behind url.
func (t *Tracker) Add(url string, offset int, text string) (*Comment, error) {
	file, err := t.provider.Locate(url)
	if err != nil {
		return nil, err
	}
	idx, err := t.buildIndex(file)
	if err != nil {
		return nil, err
	}
	content, _, err := idx.Resolve(offset)
	if err != nil {
		return nil, err
	}
	return t.insert(file, offset, text, content), nil
}

// AddAtLine attaches a comment to the start of a 1-based line.
func (t *Tracker) AddAtLine(url string, line int, text string) (*Comment, error) {
	file, err := t.provider.Locate(url)
	if err != nil {
		return nil, err
	}
	idx, err := t.buildIndex(file)
	if err != nil {
		return nil, err
	}
	offset, err := idx.LineStart(line - 1)
	if err != nil {
		return nil, err
	}
	content, _ := idx.Line(line - 1)
	return t.insert(file, offset, text, content), nil
}

func (t *Tracker) insert(file string, offset int, text, fingerprint string) *Comment {
	c := &Comment{
		ID:          commentID(t.provider.URL(file), offset, text),
		File:        file,
		Text:        text,
		Offset:      offset,
		Fingerprint: fingerprint,
	}
	t.mu.Lock()
	t.track(file, c)
	t.mu.Unlock()
	return c
}

// skip keeps records the current Load could not place. Callers hold t.mu.
func (t *Tracker) skip(url string, recs ...Record) {
	if len(recs) == 0 {
		return
	}
	for i := range t.skipped {
		if t.skipped[i].URL == url {
			t.skipped[i].Records = append(t.skipped[i].Records, recs...)
			return
		}
	}
	t.skipped = append(t.skipped, FileNode{URL: url, Records: append([]Record(nil), recs...)})
}

// Skipped returns the stored records the last Load left out of the registry,
// grouped by URL. Save never includes them.
func (t *Tracker) Skipped() []FileNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]FileNode, 0, len(t.skipped))
	for _, node := range t.skipped {
		out = append(out, FileNode{URL: node.URL, Records: append([]Record(nil), node.Records...)})
	}
	return out
}

// track appends c to its file's list. Callers hold t.mu.
func (t *Tracker) track(file string, c *Comment) {
	if _, ok := t.comments[file]; !ok {
		t.files = append(t.files, file)
	}
	t.comments[file] = append(t.comments[file], c)
}

// Remove deletes a comment by ID. IDs may be abbreviated to a unique prefix.
func (t *Tracker) Remove(id string) (*Comment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, pos, err := t.find(id)
	if err != nil {
		return nil, err
	}
	list := t.comments[file]
	removed := list[pos]
	t.comments[file] = append(list[:pos:pos], list[pos+1:]...)
	return removed, nil
}

func (t *Tracker) find(id string) (string, int, error) {
	foundFile, foundPos, foundID := "", -1, ""
	matches := 0
	for _, file := range t.files {
		for i, c := range t.comments[file] {
			if c.ID == id {
				return file, i, nil
			}
			if len(id) >= 4 && len(c.ID) > len(id) && c.ID[:len(id)] == id {
				// identical comments share an ID; the first one wins
				if foundPos >= 0 && c.ID == foundID {
					continue
				}
				foundFile, foundPos, foundID = file, i, c.ID
				matches++
			}
		}
	}
	if matches != 1 {
		return "", -1, &CommentNotFoundError{ID: id}
	}
	return foundFile, foundPos, nil
}

// Forget stops tracking a file and drops all of its comments, including
// skipped records of a file that can no longer be read.
func (t *Tracker) Forget(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i, file := range t.files {
		if t.provider.URL(file) != url && file != url {
			continue
		}
		n += len(t.comments[file])
		delete(t.comments, file)
		t.files = append(t.files[:i:i], t.files[i+1:]...)
		break
	}
	for i, node := range t.skipped {
		if node.URL != url {
			continue
		}
		n += len(node.Records)
		t.skipped = append(t.skipped[:i:i], t.skipped[i+1:]...)
		break
	}
	return n
}

// Files returns the tracked file identities in insertion order.
func (t *Tracker) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.files...)
}

// Comments returns copies of the comments of one file.
func (t *Tracker) Comments(file string) []Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.comments[file]
	out := make([]Comment, 0, len(list))
	for _, c := range list {
		out = append(out, *c)
	}
	return out
}

// Position resolves a comment against the current content of its file and
// returns the 0-based line number and line text it points at.
func (t *Tracker) Position(c Comment) (int, string, error) {
	idx, err := t.buildIndex(c.File)
	if err != nil {
		return 0, "", err
	}
	text, line, err := idx.Resolve(c.Offset)
	if err != nil {
		return 0, "", err
	}
	return line, text, nil
}

// commentID derives a stable ID from what is persisted, so the same comment
// keeps its ID across load passes.
func commentID(url string, offset int, text string) string {
	key := fmt.Sprintf("%s\x00%d\x00%s", url, offset, text)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// buildIndex reads a fresh snapshot of file. Indexes are never reused
// between passes.
func (t *Tracker) buildIndex(file string) (*lineindex.Index, error) {
	sepLen, err := t.provider.LineSeparatorLength(file)
	if err != nil {
		return nil, err
	}
	content, err := t.provider.RawContent(file)
	if err != nil {
		return nil, err
	}
	return lineindex.New(content, sepLen)
}
