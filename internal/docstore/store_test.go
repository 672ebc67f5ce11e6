package docstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

func sampleDoc(id string) *models.Document {
	return &models.Document{
		ID:            id,
		FileName:      "bio.pdf",
		MimeType:      "application/pdf",
		ExtractedText: "Cells divide.",
		Chunks:        []models.Chunk{{Content: "Cells divide.", Metadata: models.ChunkMetadata{Source: id}}},
		Structure:     []models.Page{{PageIndex: 0, Nodes: []models.Node{{ID: "0-0", Type: models.NodeTypeText, Content: models.NodeContent{Text: "Cells divide."}}}}},
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, utils.ErrDocumentNotFound)
	assert.ErrorIs(t, s.PutContent(ctx, id, "summaryData", json.RawMessage(`"x"`)), utils.ErrDocumentNotFound)

	require.NoError(t, s.Save(ctx, sampleDoc(id)))
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cells divide.", got.ExtractedText)
	assert.Len(t, got.Chunks, 1)

	_, found, err := s.GetContent(ctx, id, "summaryData")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.PutContent(ctx, id, "summaryData", json.RawMessage(`{"summary":"old"}`)))

	// re-ingest keeps generated content
	again := sampleDoc(id)
	again.ExtractedText = "Cells divide twice."
	require.NoError(t, s.Save(ctx, again))

	raw, found, err := s.GetContent(ctx, id, "summaryData")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"summary":"old"}`, string(raw))
	got, _ = s.Get(ctx, id)
	assert.Equal(t, "Cells divide twice.", got.ExtractedText)

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, id)

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), utils.ErrDocumentNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		d := sampleDoc(id)
		d.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, d))
	}
	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	db := client.Database("study_notes_test")
	t.Cleanup(func() { db.Drop(context.Background()) })
	exerciseStore(t, NewMongoStore(db, "documents"))
}
