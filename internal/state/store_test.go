package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rowsA = []Row{
		{Branch: "release/1.0", Commit: "c1", InactiveDays: 69, Status: StatusMarked},
		{Branch: "feature/x", Commit: "c2", InactiveDays: 19, Status: StatusRetained},
	}
	rowsB = []Row{
		{Branch: "release/1.0", Commit: "c9", InactiveDays: 1, Status: StatusRetained},
		{Branch: "feature/x", Commit: "c2", InactiveDays: 19, Status: StatusRetained},
	}
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "results", "state.json"), nil)
}

func TestFileStore_ReadFirstRun(t *testing.T) {
	s := newFileStore(t)

	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound), "missing file must be ErrNotFound, not an I/O error")
}

func TestFileStore_MergeCreatesDocument(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rowsA, doc["service-a"])
}

func TestFileStore_MergeReplacesOnDifferentLength(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	shorter := rowsA[:1]
	require.NoError(t, s.Merge(ctx, "service-a", shorter))

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, shorter, doc["service-a"])
}

func TestFileStore_MergeSkipsEqualLength(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	// Same size, different content: the stored entry must survive.
	require.NoError(t, s.Merge(ctx, "service-a", rowsB))

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rowsA, doc["service-a"])
}

func TestFileStore_MergeIdempotent(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	before, err := os.ReadFile(s.path)
	require.NoError(t, err)

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	after, err := os.ReadFile(s.path)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after), "second identical merge must leave the document byte-identical")
}

func TestFileStore_MergePreservesOtherRepos(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	require.NoError(t, s.Merge(ctx, "service-b", rowsB))

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rowsA, doc["service-a"])
	assert.Equal(t, rowsB, doc["service-b"])
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))

	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestFileStore_CorruptDocumentIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s := NewFileStore(path, nil)
	_, err := s.Read(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound), "corruption is fatal, not a first run")
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.Read(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Merge(ctx, "service-a", rowsA))
	require.NoError(t, s.Merge(ctx, "service-a", rowsB)) // equal length, skipped

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rowsA, doc["service-a"])

	// Mutating the returned document must not affect the store.
	doc["service-a"][0].Status = StatusDeleted
	doc2, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusMarked, doc2["service-a"][0].Status)
}
