package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// MongoStore keeps one document per ingested file in the documents
// collection. Generated content lives under the "generated" subdocument.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{col: db.Collection(collection)}
}

func (s *MongoStore) Save(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	created := doc.CreatedAt
	if created.IsZero() {
		created = now
	}

	update := bson.M{
		"$set": bson.M{
			"file_name":      doc.FileName,
			"mime_type":      doc.MimeType,
			"file_hash":      doc.FileHash,
			"extracted_text": doc.ExtractedText,
			"chunks":         doc.Chunks,
			"structure":      doc.Structure,
			"topics":         doc.Topics,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{"created_at": created},
	}
	ctx, cancel := utils.WithTimeout(ctx)
	defer cancel()
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Document, error) {
	ctx, cancel := utils.WithTimeout(ctx)
	defer cancel()

	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"extracted_text": 0, "structure": 0, "generated": 0, "chunks.content": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]models.DocumentSummary, len(docs))
	for i := range docs {
		out[i] = docs[i].Summary()
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return utils.ErrDocumentNotFound
	}
	return nil
}

func (s *MongoStore) GetContent(ctx context.Context, id, field string) (json.RawMessage, bool, error) {
	var doc struct {
		Generated map[string]string `bson:"generated"`
	}
	opts := options.FindOne().SetProjection(bson.M{"generated." + field: 1})
	err := s.col.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, utils.ErrDocumentNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s for %s: %w", field, id, err)
	}
	raw, ok := doc.Generated[field]
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(raw), true, nil
}

func (s *MongoStore) PutContent(ctx context.Context, id, field string, data json.RawMessage) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"generated." + field: string(data),
			"updated_at":         time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("put %s for %s: %w", field, id, err)
	}
	if res.MatchedCount == 0 {
		return utils.ErrDocumentNotFound
	}
	return nil
}
