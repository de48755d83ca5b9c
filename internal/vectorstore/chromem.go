package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/models"

	"github.com/philippgille/chromem-go"
)

// Store wraps a chromem-go collection as the similarity retriever. chromem
// only supports string metadata, so structured values are JSON-encoded on
// write and decoded on read. Per-document chunk lookups and bulk listing go
// through a sidecar manifest kept next to the database, since the index
// itself is only queryable by similarity.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu           sync.RWMutex
	manifest     map[string]*manifestEntry
	manifestPath string
}

type manifestEntry struct {
	Record models.DocumentRecord `json:"record"`
	Chunks []manifestChunk       `json:"chunks"`
}

type manifestChunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Metadata keys whose values are stored JSON-encoded in the index.
var structuredMetaKeys = map[string]bool{
	models.MetaPosition:        true,
	models.MetaPageNumber:      true,
	models.MetaParagraphNumber: true,
}

func New(cfg *config.Config, embed chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	var err error

	if cfg.VectorInMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.VectorDBPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.VectorCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	s := &Store{
		db:         db,
		collection: collection,
		manifest:   make(map[string]*manifestEntry),
	}
	if !cfg.VectorInMemory {
		s.manifestPath = filepath.Join(cfg.VectorDBPath, "manifest.json")
		if err := s.loadManifest(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IndexDocument chunks a processed document paragraph-by-paragraph and adds
// the chunks to the index.
func (s *Store) IndexDocument(ctx context.Context, doc *models.ProcessedDocument) error {
	chunks := chunkDocument(doc)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no indexable content", doc.ID)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	stored := make([]manifestChunk, 0, len(chunks))
	for i, chunk := range chunks {
		id := fmt.Sprintf("%s-%d", doc.ID, i)
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  chunk.Content,
			Metadata: encodeMetadata(chunk.Metadata),
		})
		stored = append(stored, manifestChunk{ID: id, Content: chunk.Content, Metadata: chunk.Metadata})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	record := doc.Record()
	record.Status = models.StatusIndexed

	s.mu.Lock()
	s.manifest[doc.ID] = &manifestEntry{Record: record, Chunks: stored}
	err := s.saveManifestLocked()
	s.mu.Unlock()
	return err
}

// DeleteDocument removes all of a document's chunks from the index.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.collection.Delete(ctx, map[string]string{models.MetaDocID: docID}, nil); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}

	s.mu.Lock()
	delete(s.manifest, docID)
	err := s.saveManifestLocked()
	s.mu.Unlock()
	return err
}

// SimilaritySearch returns the k most similar chunks to the query text, as
// raw search hits. k is clamped to the collection size; an empty index
// yields an empty result, not an error.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Retrieved, error) {
	n := k
	if count := s.collection.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	retrieved := make([]models.Retrieved, 0, len(results))
	for _, res := range results {
		retrieved = append(retrieved, models.NewRetrievedRaw(&models.RawSearchHit{
			VectorID: res.ID,
			Content:  res.Content,
			Metadata: decodeMetadata(res.Metadata),
			Score:    float64(res.Similarity),
		}))
	}
	return retrieved, nil
}

// ChunksByDocument returns every indexed chunk of one document, in index
// order. The chunks carry no similarity score.
func (s *Store) ChunksByDocument(ctx context.Context, docID string) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	entry, ok := s.manifest[docID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	chunks := make([]models.ScoredChunk, 0, len(entry.Chunks))
	for _, c := range entry.Chunks {
		chunks = append(chunks, models.ScoredChunk{Content: c.Content, Metadata: c.Metadata})
	}
	return chunks, nil
}

// ListDocuments returns one record per indexed document.
func (s *Store) ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]models.DocumentRecord, len(s.manifest))
	for id, entry := range s.manifest {
		records[id] = entry.Record
	}
	return records, nil
}

// HealthCheck reports whether the index is reachable.
func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.db == nil || s.collection == nil {
		return false
	}
	s.collection.Count()
	return true
}

// chunkDocument builds one chunk per non-empty paragraph, carrying the
// metadata the query pipeline filters and cites on.
func chunkDocument(doc *models.ProcessedDocument) []models.DocumentChunk {
	var chunks []models.DocumentChunk
	for _, page := range doc.Pages {
		for _, para := range page.Paragraphs {
			if para.Text == "" {
				continue
			}
			metadata := map[string]any{
				models.MetaDocID:           doc.ID,
				models.MetaFilename:        doc.Metadata.Filename,
				models.MetaPageNumber:      page.PageNumber,
				models.MetaParagraphNumber: para.Position.ParagraphIndex,
				models.MetaPosition: map[string]any{
					"page": para.Position.Page,
					"rect": para.Position.Rect,
				},
			}
			if doc.Metadata.Author != "" {
				metadata[models.MetaAuthor] = doc.Metadata.Author
			}
			if doc.Metadata.DocumentDate != "" {
				metadata[models.MetaDocumentDate] = doc.Metadata.DocumentDate
			}
			if doc.Metadata.DocumentType != "" {
				metadata[models.MetaDocumentType] = doc.Metadata.DocumentType
			}
			chunks = append(chunks, models.DocumentChunk{Content: para.Text, Metadata: metadata})
		}
	}
	return chunks
}

func encodeMetadata(metadata map[string]any) map[string]string {
	encoded := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if s, ok := value.(string); ok && !structuredMetaKeys[key] {
			encoded[key] = s
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			logger.Warn("Skipping unencodable metadata value", "key", key)
			continue
		}
		encoded[key] = string(raw)
	}
	return encoded
}

func decodeMetadata(encoded map[string]string) map[string]any {
	metadata := make(map[string]any, len(encoded))
	for key, value := range encoded {
		if !structuredMetaKeys[key] {
			metadata[key] = value
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			metadata[key] = value
			continue
		}
		metadata[key] = decoded
	}
	return metadata
}

func (s *Store) loadManifest() error {
	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read vector store manifest: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(data, &s.manifest); err != nil {
		return fmt.Errorf("failed to decode vector store manifest: %w", err)
	}
	return nil
}

func (s *Store) saveManifestLocked() error {
	if s.manifestPath == "" {
		return nil
	}
	data, err := json.Marshal(s.manifest)
	if err != nil {
		return fmt.Errorf("failed to encode vector store manifest: %w", err)
	}
	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write vector store manifest: %w", err)
	}
	return os.Rename(tmp, s.manifestPath)
}
