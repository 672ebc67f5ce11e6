// Package docstore persists committed documents and their generated content.
package docstore

import (
	"context"
	"encoding/json"

	"study-notes-platform/models"
)

// Store holds committed documents. Get and content calls on an unknown id
// return utils.ErrDocumentNotFound.
type Store interface {
	// Save inserts or replaces the ingested fields of doc in one write.
	// Previously generated content for the same id is kept.
	Save(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, limit int) ([]models.DocumentSummary, error)
	Delete(ctx context.Context, id string) error

	// GetContent returns stored generated content for field. found is
	// false when the document exists but nothing was stored yet.
	GetContent(ctx context.Context, id, field string) (data json.RawMessage, found bool, err error)
	PutContent(ctx context.Context, id, field string, data json.RawMessage) error
}
