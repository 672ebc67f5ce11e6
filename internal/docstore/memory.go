package docstore

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// MemoryStore is a process-local Store used by tests and single-binary runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*models.Document)}
}

func (s *MemoryStore) Save(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	now := time.Now().UTC()
	cp.UpdatedAt = now
	cp.Generated = nil
	if prev, ok := s.docs[doc.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
		cp.Generated = prev.Generated
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.docs[doc.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, utils.ErrDocumentNotFound
	}
	cp := *doc
	cp.Generated = maps.Clone(doc.Generated)
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]models.DocumentSummary, error) {
	s.mu.RLock()
	out := make([]models.DocumentSummary, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Summary())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.DocumentSummary) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return utils.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) GetContent(_ context.Context, id, field string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, false, utils.ErrDocumentNotFound
	}
	raw, ok := doc.Generated[field]
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(raw), true, nil
}

func (s *MemoryStore) PutContent(_ context.Context, id, field string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return utils.ErrDocumentNotFound
	}
	generated := maps.Clone(doc.Generated)
	if generated == nil {
		generated = make(map[string]string)
	}
	generated[field] = string(data)
	doc.Generated = generated
	doc.UpdatedAt = time.Now().UTC()
	return nil
}
