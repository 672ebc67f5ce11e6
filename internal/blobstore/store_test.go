package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "uploads/doc-1/a.pdf", []byte("%PDF-1.7"), "application/pdf"))
	data, err := s.Get(ctx, "uploads/doc-1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	entries, err := os.ReadDir(filepath.Join(s.root, "uploads", "doc-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, s.Delete(ctx, "uploads/doc-1/a.pdf"))
	require.NoError(t, s.Delete(ctx, "uploads/doc-1/a.pdf"))
	_, err = s.Get(ctx, "uploads/doc-1/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../x", "a/../../x"} {
		assert.Error(t, s.Put(context.Background(), key, []byte("x"), ""), key)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, &config.Config{BlobBackend: "local", FileStorageDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = New(ctx, &config.Config{BlobBackend: "s3"})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(ctx, &config.Config{BlobBackend: "gcs"})
	assert.Error(t, err)
}
