package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"study-notes-platform/internal/logger"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// Manager builds and loads indexes. Builds for the same document are
// serialized; builds and loads of different documents do not contend.
type Manager struct {
	store Store
	locks *keyedMutex
	log   *slog.Logger
}

func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: newKeyedMutex(),
		log:   logger.With("vectorindex"),
	}
}

// Build embeds every chunk and replaces any existing index for documentID.
// An empty chunk list produces an empty, loadable index.
func (m *Manager) Build(ctx context.Context, documentID string, chunks []models.Chunk, embed Embedder) (*Index, error) {
	ctx, span := otel.Tracer("vectorindex").Start(ctx, "vectorindex.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.Int("chunks.count", len(chunks)),
	)

	unlock := m.locks.Lock(documentID)
	defer unlock()

	fail := func(err error) (*Index, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", utils.ErrIndexBuildFailed, err)
	}

	idx := &Index{DocumentID: documentID, BuiltAt: time.Now().UTC(), Records: make([]Record, len(chunks))}
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := embed.Embed(ctx, texts)
		if err != nil {
			return fail(fmt.Errorf("embed chunks: %w", err))
		}
		if len(vectors) != len(chunks) {
			return fail(fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
		}
		for i, c := range chunks {
			if idx.Dimension == 0 {
				idx.Dimension = len(vectors[i])
			}
			if len(vectors[i]) != idx.Dimension {
				return fail(fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), idx.Dimension))
			}
			idx.Records[i] = Record{Content: c.Content, Metadata: c.Metadata, Vector: vectors[i]}
		}
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fail(err)
	}
	if err := m.store.Write(ctx, documentID, data); err != nil {
		return fail(err)
	}

	m.log.Info("index built", "document_id", documentID, "chunks", len(chunks), "dimension", idx.Dimension, "bytes", len(data))
	return idx, nil
}

// Load returns the stored index. found is false when none exists.
func (m *Manager) Load(ctx context.Context, documentID string) (*Index, bool, error) {
	ctx, span := otel.Tracer("vectorindex").Start(ctx, "vectorindex.Load")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	data, err := m.store.Read(ctx, documentID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("decode index %s: %w", documentID, err)
	}
	return &idx, true, nil
}

// Delete removes the index for documentID.
func (m *Manager) Delete(ctx context.Context, documentID string) error {
	unlock := m.locks.Lock(documentID)
	defer unlock()
	return m.store.Delete(ctx, documentID)
}

// keyedMutex hands out one mutex per key and drops it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
