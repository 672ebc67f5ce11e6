package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// axisEmbedder puts each keyword on its own axis.
type axisEmbedder struct {
	keywords []string
	calls    int
	mu       sync.Mutex
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(e.keywords)+1)
		v[len(e.keywords)] = 0.01
		lower := strings.ToLower(t)
		for j, kw := range e.keywords {
			v[j] = float32(strings.Count(lower, kw))
		}
		out[i] = v
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func newTestManager(t *testing.T) (*Manager, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewManager(store), store
}

func chunksOf(contents ...string) []models.Chunk {
	out := make([]models.Chunk, len(contents))
	for i, c := range contents {
		out[i] = models.Chunk{Content: c, Metadata: models.ChunkMetadata{PageIndex: i, ChunkIndex: i, Source: "doc"}}
	}
	return out
}

func TestRoundTripWholeDocument(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	emb := &axisEmbedder{keywords: []string{"cell", "atom"}}

	chunks := chunksOf("cells divide", "atoms bond", "cell walls", "plain words")
	_, err := m.Build(ctx, "doc-1", chunks, emb)
	require.NoError(t, err)

	idx, found, err := m.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, len(chunks), idx.Len())

	for _, k := range []int{len(chunks), len(chunks) + 10} {
		matches, err := idx.SimilaritySearch(ctx, emb, "", k)
		require.NoError(t, err)

		got := make([]string, 0, len(matches))
		for _, mt := range matches {
			got = append(got, mt.Chunk.Content)
		}
		assert.ElementsMatch(t, []string{"cells divide", "atoms bond", "cell walls", "plain words"}, got)
	}
}

func TestSimilaritySearchRanks(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	emb := &axisEmbedder{keywords: []string{"cell", "atom"}}

	idx, err := m.Build(ctx, "doc-1", chunksOf("atoms and atoms", "cell biology", "cell cell cell"), emb)
	require.NoError(t, err)

	matches, err := idx.SimilaritySearch(ctx, emb, "what is a cell", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Contains(t, matches[0].Chunk.Content, "cell")
	assert.Contains(t, matches[1].Chunk.Content, "cell")
	assert.Greater(t, matches[0].Score, 0.9)
}

func TestSearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	emb := &axisEmbedder{keywords: []string{"x"}}
	idx := &Index{DocumentID: "d"}

	matches, err := idx.SimilaritySearch(ctx, emb, "x", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	idx.Records = []Record{{Content: "x", Vector: []float32{1, 0}}}
	matches, err = idx.SimilaritySearch(ctx, emb, "x", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	m, _ := newTestManager(t)
	idx, found, err := m.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, idx)
}

func TestBuildEmptyChunks(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	emb := &axisEmbedder{}

	_, err := m.Build(ctx, "empty", nil, emb)
	require.NoError(t, err)
	assert.Equal(t, 0, emb.calls)

	idx, found, err := m.Load(ctx, "empty")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, idx.Len())
}

func TestBuildFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	_, err := m.Build(ctx, "doc", chunksOf("first"), &axisEmbedder{keywords: []string{"first"}})
	require.NoError(t, err)

	_, err = m.Build(ctx, "doc", chunksOf("second"), failingEmbedder{})
	require.ErrorIs(t, err, utils.ErrIndexBuildFailed)

	idx, found, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", idx.Records[0].Content)
}

func TestRebuildOverwrites(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	emb := &axisEmbedder{keywords: []string{"a"}}

	_, err := m.Build(ctx, "doc", chunksOf("a1", "a2", "a3"), emb)
	require.NoError(t, err)
	_, err = m.Build(ctx, "doc", chunksOf("b1"), emb)
	require.NoError(t, err)

	idx, _, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	entries, err := os.ReadDir(filepath.Join(store.root, "doc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the final index file remains")
}

func TestConcurrentBuildsSameDocument(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	emb := &axisEmbedder{keywords: []string{"n"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Build(ctx, "shared", chunksOf(fmt.Sprintf("n%d", i), "tail"), emb)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	idx, found, err := m.Load(ctx, "shared")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, idx.Len())
	assert.Empty(t, m.locks.locks, "locks are released")
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Write(context.Background(), "..", []byte("x")))
	require.NoError(t, store.Write(context.Background(), "a/b", []byte("x")))

	data, err := store.Read(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestSweepTemp(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	dir := filepath.Join(store.root, "doc")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	stale := filepath.Join(dir, "index-123.tmp")
	fresh := filepath.Join(dir, "index-456.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := store.SweepTemp(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}
