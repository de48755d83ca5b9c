package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"document-query-platform/internal/config"
	"document-query-platform/models"
	"document-query-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a document ID has no registry entry.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the MongoDB-backed document registry. It holds the
// authoritative processing state per document; the vector index is converged
// toward it best-effort.
type DocumentStore struct {
	collection *mongo.Collection
}

type storedDocument struct {
	ID             string                     `bson:"_id"`
	Pages          []models.DocumentPage      `bson:"pages"`
	Metadata       models.DocumentMetadata    `bson:"metadata"`
	CompressedText []byte                     `bson:"compressed_text,omitempty"`
	Compression    utils.CompressionAlgorithm `bson:"compression,omitempty"`
	UpdatedAt      time.Time                  `bson:"updated_at"`
}

func NewDocumentStore(client *mongo.Client, cfg *config.Config) *DocumentStore {
	return &DocumentStore{
		collection: client.Database(cfg.DBName).Collection("documents"),
	}
}

// SaveDocument upserts a processed document, compressing its full text at
// rest.
func (s *DocumentStore) SaveDocument(ctx context.Context, doc *models.ProcessedDocument) error {
	compressed, algorithm, err := utils.CompressText(doc.FullText)
	if err != nil {
		return fmt.Errorf("failed to compress document text: %w", err)
	}

	stored := storedDocument{
		ID:             doc.ID,
		Pages:          doc.Pages,
		Metadata:       doc.Metadata,
		CompressedText: compressed,
		Compression:    algorithm,
		UpdatedAt:      time.Now().UTC(),
	}

	_, err = s.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		stored,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument retrieves a processed document by ID.
func (s *DocumentStore) GetDocument(ctx context.Context, docID string) (*models.ProcessedDocument, error) {
	var stored storedDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": docID}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document %s: %w", docID, err)
	}

	fullText, err := utils.DecompressText(stored.CompressedText, stored.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress document %s: %w", docID, err)
	}

	return &models.ProcessedDocument{
		ID:       stored.ID,
		FullText: fullText,
		Pages:    stored.Pages,
		Metadata: stored.Metadata,
	}, nil
}

// UpdateStatus sets the processing status of one document.
func (s *DocumentStore) UpdateStatus(ctx context.Context, docID, status string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{
			"metadata.processing_status": status,
			"updated_at":                 time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", docID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document from the registry.
func (s *DocumentStore) DeleteDocument(ctx context.Context, docID string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDocuments returns the full document directory keyed by document ID, in
// the listing shape shared with the vector store.
func (s *DocumentStore) ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error) {
	projection := bson.M{"pages": 0, "compressed_text": 0}
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	records := make(map[string]models.DocumentRecord)
	for cursor.Next(ctx) {
		var stored storedDocument
		if err := cursor.Decode(&stored); err != nil {
			continue
		}
		doc := models.ProcessedDocument{ID: stored.ID, Metadata: stored.Metadata}
		records[stored.ID] = doc.Record()
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return records, nil
}

// ListByStatus returns the IDs of documents in the given processing status.
// Used by the periodic re-index sweep.
func (s *DocumentStore) ListByStatus(ctx context.Context, status string) ([]string, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{"metadata.processing_status": strings.ToLower(status)},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by status: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}
