package services

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"study-notes-platform/internal/ai"
	"study-notes-platform/internal/blobstore"
	"study-notes-platform/internal/chunker"
	"study-notes-platform/internal/docstore"
	"study-notes-platform/internal/extractor"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/vectorindex"
)

// fakeGenerator returns canned responses and records prompts.
type fakeGenerator struct {
	mu        sync.Mutex
	response  string
	err       error
	fragments []string
	prompts   []string
	formats   []ai.OutputFormat

	// set when a stream finishes, with the context error seen at that point
	streamDone chan error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, format ai.OutputFormat) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.formats = append(f.formats, format)
	return f.response, f.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer func() {
			err := ctx.Err()
			cancel()
			if f.streamDone != nil {
				f.streamDone <- err
			}
		}()
		f.mu.Lock()
		f.prompts = append(f.prompts, prompt)
		f.mu.Unlock()
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// flakyEmbedder fails the first n calls.
type flakyEmbedder struct {
	mu    sync.Mutex
	fails int
	inner vectorindex.Embedder
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	if e.fails > 0 {
		e.fails--
		e.mu.Unlock()
		return nil, errors.New("embedding quota exceeded")
	}
	e.mu.Unlock()
	return e.inner.Embed(ctx, texts)
}

type testEnv struct {
	blobs    *blobstore.LocalStore
	docs     *docstore.MemoryStore
	jobs     *jobs.MemoryStore
	indexes  *vectorindex.Manager
	embedder vectorindex.Embedder
	gen      *fakeGenerator
	ingestor *Ingestor
	pipeline *Pipeline
	broker   *jobs.MemoryBroker
}

func newTestEnv(t *testing.T, embedder vectorindex.Embedder) *testEnv {
	t.Helper()
	if embedder == nil {
		embedder = ai.HashEmbedder{Dimension: 64}
	}
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	indexStore, err := vectorindex.NewFileStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		blobs:    blobs,
		docs:     docstore.NewMemoryStore(),
		jobs:     jobs.NewMemoryStore(time.Hour),
		indexes:  vectorindex.NewManager(indexStore),
		embedder: embedder,
		gen:      &fakeGenerator{},
		broker:   jobs.NewMemoryBroker(8),
	}
	env.ingestor = NewIngestor(blobs, extractor.New(), chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20)),
		env.indexes, embedder, env.docs, env.jobs, nil)
	gen := NewGenerationService(env.gen, env.indexes, embedder, time.Minute, nil)
	env.pipeline = NewPipeline(PipelineDeps{
		Blobs:      blobs,
		Jobs:       env.jobs,
		Publisher:  env.broker,
		Docs:       env.docs,
		Indexes:    env.indexes,
		Generation: gen,
	})
	return env
}

// ingestNow queues text and runs the single delivery inline.
func (e *testEnv) ingestNow(t *testing.T, text string) string {
	t.Helper()
	ctx := context.Background()
	resp, err := e.pipeline.Ingest(ctx, []byte(text), "notes.txt", "text/plain")
	require.NoError(t, err)
	task := <-e.broker.Tasks()
	require.NoError(t, e.ingestor.Handle(ctx, task, true))
	return resp.DocumentID
}
