package services

import (
	"context"
	"fmt"
	"strings"

	"document-query-platform/internal/logger"
	"document-query-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DocumentRegistry is the durable document store behind the processor.
type DocumentRegistry interface {
	SaveDocument(ctx context.Context, doc *models.ProcessedDocument) error
	GetDocument(ctx context.Context, docID string) (*models.ProcessedDocument, error)
	UpdateStatus(ctx context.Context, docID, status string) error
	DeleteDocument(ctx context.Context, docID string) error
	ListByStatus(ctx context.Context, status string) ([]string, error)
}

// DocumentIndexer is the vector index side of ingestion.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc *models.ProcessedDocument) error
	DeleteDocument(ctx context.Context, docID string) error
}

// DocumentProcessor runs the ingestion pipeline: extract positioned text,
// persist the document, index its paragraphs.
type DocumentProcessor struct {
	extractor *TextExtractor
	registry  DocumentRegistry
	indexer   DocumentIndexer
}

func NewDocumentProcessor(extractor *TextExtractor, registry DocumentRegistry, indexer DocumentIndexer) *DocumentProcessor {
	return &DocumentProcessor{
		extractor: extractor,
		registry:  registry,
		indexer:   indexer,
	}
}

// Process extracts, stores and indexes one uploaded file. Extraction or
// storage failures mark the document failed and return the error. An
// indexing failure is not fatal: the document stays queryable from the
// store with status indexing_failed until a retry succeeds.
func (p *DocumentProcessor) Process(ctx context.Context, docID, filePath string, metadata models.DocumentMetadata) (*models.ProcessedDocument, error) {
	tracer := otel.Tracer("document-processor")
	ctx, span := tracer.Start(ctx, "processor.process")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", docID))

	metadata.ProcessingStatus = models.StatusProcessing

	pages, err := p.extractor.ExtractPages(ctx, filePath, metadata.ContentType)
	if err != nil {
		p.markFailed(ctx, docID, metadata)
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}

	segments := 0
	fullTexts := make([]string, 0, len(pages))
	for _, page := range pages {
		segments += len(page.Paragraphs)
		fullTexts = append(fullTexts, page.FullText)
	}
	metadata.PageCount = len(pages)
	metadata.SegmentCount = segments
	metadata.ProcessingStatus = models.StatusProcessed

	doc := &models.ProcessedDocument{
		ID:       docID,
		FullText: strings.Join(fullTexts, "\n\n"),
		Pages:    pages,
		Metadata: metadata,
	}

	if err := p.registry.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	logger.Info("Document stored", "document_id", docID, "pages", len(pages), "segments", segments)

	if err := p.indexer.IndexDocument(ctx, doc); err != nil {
		logger.Error("Indexing failed, document remains searchable after retry",
			"document_id", docID, "error", err)
		doc.Metadata.ProcessingStatus = models.StatusIndexingFailed
		if statusErr := p.registry.UpdateStatus(ctx, docID, models.StatusIndexingFailed); statusErr != nil {
			logger.Error("Failed to record indexing failure", "document_id", docID, "error", statusErr)
		}
		return doc, nil
	}

	doc.Metadata.ProcessingStatus = models.StatusIndexed
	if err := p.registry.UpdateStatus(ctx, docID, models.StatusIndexed); err != nil {
		logger.Error("Failed to record indexed status", "document_id", docID, "error", err)
	}
	logger.Info("Document indexed", "document_id", docID)
	return doc, nil
}

func (p *DocumentProcessor) markFailed(ctx context.Context, docID string, metadata models.DocumentMetadata) {
	metadata.ProcessingStatus = models.StatusFailed
	failed := &models.ProcessedDocument{ID: docID, Metadata: metadata}
	if err := p.registry.SaveDocument(ctx, failed); err != nil {
		logger.Error("Failed to record processing failure", "document_id", docID, "error", err)
	}
}

// RetryIndexing re-indexes a stored document whose vector indexing failed.
func (p *DocumentProcessor) RetryIndexing(ctx context.Context, docID string) error {
	doc, err := p.registry.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to load document for re-indexing: %w", err)
	}

	if err := p.indexer.IndexDocument(ctx, doc); err != nil {
		if statusErr := p.registry.UpdateStatus(ctx, docID, models.StatusIndexingFailed); statusErr != nil {
			logger.Error("Failed to record indexing failure", "document_id", docID, "error", statusErr)
		}
		return fmt.Errorf("re-indexing failed: %w", err)
	}

	if err := p.registry.UpdateStatus(ctx, docID, models.StatusIndexed); err != nil {
		logger.Error("Failed to record indexed status", "document_id", docID, "error", err)
	}
	logger.Info("Document re-indexed", "document_id", docID)
	return nil
}

// Delete removes a document from both the store and the vector index.
func (p *DocumentProcessor) Delete(ctx context.Context, docID string) error {
	if err := p.indexer.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to remove document from index: %w", err)
	}
	if err := p.registry.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to remove document from store: %w", err)
	}
	logger.Info("Document deleted", "document_id", docID)
	return nil
}
