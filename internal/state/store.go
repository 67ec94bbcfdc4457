// Package state persists per-repository branch classifications between the
// scan-day and delete-day phases. The whole document is written atomically so
// a crash mid-write never corrupts other repositories' entries.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNotFound signals that no persisted state exists yet. A first run is
// expected and recoverable; callers must check with errors.Is rather than
// treating it as an I/O failure.
var ErrNotFound = errors.New("no persisted state")

// Status is a branch disposition. The wire strings appear verbatim in the
// state document, the run log and the HTML summary.
type Status string

const (
	StatusRetained Status = "RETAINED"
	StatusMarked   Status = "MARKED FOR DELETION"
	StatusDeleted  Status = "DELETED"
)

// Row is one branch's classification (scan day) or outcome (delete day).
type Row struct {
	Branch       string `json:"branch"`
	Commit       string `json:"commit"`
	InactiveDays int    `json:"inactiveDays"`
	Status       Status `json:"status"`
}

// Document maps repository name to its rows, in branch-listing order.
type Document map[string][]Row

// Store is the durable record that survives between the two phases.
type Store interface {
	// Read returns the full persisted document, or ErrNotFound on first run.
	Read(ctx context.Context) (Document, error)

	// Merge sets the rows for one repository and persists the whole document.
	// An existing entry is replaced only when the repository is absent or the
	// row counts differ; an equal-sized result set never overwrites, so a
	// degraded re-run cannot silently discard a richer prior scan.
	Merge(ctx context.Context, repo string, rows []Row) error
}

// FileStore keeps the document in a single JSON file, replaced atomically via
// a temp file and rename.
type FileStore struct {
	path string
	log  *zap.Logger
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Read(_ context.Context) (Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", s.path, ErrNotFound)
		}
		return nil, fmt.Errorf("read state %s: %w", s.path, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) Merge(ctx context.Context, repo string, rows []Row) error {
	doc, err := s.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		doc = Document{}
	}

	if !applyMerge(doc, repo, rows) {
		s.log.Warn("state merge skipped: equal-sized result set already persisted",
			zap.String("repository", repo),
			zap.Int("rows", len(rows)))
		return nil
	}

	return s.write(doc)
}

// write replaces the state file atomically. The temp file lives in the same
// directory so the rename cannot cross filesystems.
func (s *FileStore) write(doc Document) error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state %s: %w", s.path, err)
	}
	return nil
}

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	doc Document
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Read(_ context.Context) (Document, error) {
	if s.doc == nil {
		return nil, ErrNotFound
	}
	// Copy so callers cannot mutate the stored document.
	out := make(Document, len(s.doc))
	for repo, rows := range s.doc {
		out[repo] = append([]Row(nil), rows...)
	}
	return out, nil
}

func (s *MemStore) Merge(_ context.Context, repo string, rows []Row) error {
	if s.doc == nil {
		s.doc = Document{}
	}
	applyMerge(s.doc, repo, rows)
	return nil
}

// applyMerge applies the non-overwriting merge rule and reports whether the
// document changed.
func applyMerge(doc Document, repo string, rows []Row) bool {
	if existing, ok := doc[repo]; ok && len(existing) == len(rows) {
		return false
	}
	doc[repo] = append([]Row(nil), rows...)
	return true
}
