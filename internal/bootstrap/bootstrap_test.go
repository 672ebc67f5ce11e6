package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/config"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/models"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		DocStoreBackend:    "memory",
		BlobBackend:        "local",
		FileStorageDir:     t.TempDir(),
		IndexStorageDir:    t.TempDir(),
		EmbeddingsProvider: "local",
		QueueBackend:       "memory",
		ChunkSize:          500,
		ChunkOverlap:       50,
		JobRetention:       time.Hour,
	}
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, memoryConfig(t), nil)
	require.NoError(t, err)
	defer d.Close(ctx)

	assert.Nil(t, d.Redis)
	store, err := d.JobStore()
	require.NoError(t, err)
	assert.IsType(t, &jobs.MemoryStore{}, store)
	assert.ElementsMatch(t, []string{"index-temp-sweep", "job-retention-sweep"}, d.Janitor.Tags())

	require.NoError(t, d.Blobs.Put(ctx, "uploads/a/notes.txt", []byte("PHOTOSYNTHESIS\n\nLight becomes sugar."), "text/plain"))
	job, err := store.Create(ctx, models.JobPayload{FilePath: "uploads/a/notes.txt", FileName: "notes.txt", MimeType: "text/plain", DocumentID: "doc-a"})
	require.NoError(t, err)

	ingestor := d.NewIngestor(store)
	require.NoError(t, ingestor.Handle(ctx, jobs.Task{JobID: job.ID, Payload: job.Payload}, true))

	doc, err := d.Docs.Get(ctx, "doc-a")
	require.NoError(t, err)
	assert.Contains(t, doc.ExtractedText, "Light becomes sugar.")
	_, found, err := d.Indexes.Load(ctx, "doc-a")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestOpenRejectsUnknownEmbedder(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.EmbeddingsProvider = "openai"
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown embeddings provider")
}
