package services

import (
	"document-query-platform/internal/logger"
	"document-query-platform/models"
)

// snippetMaxLength is the hard cap on citation content snippets.
const snippetMaxLength = 200

// CitationBuilder turns chunks into traceable citation records. Pure
// functions over their inputs, no I/O.
type CitationBuilder struct {
	dimension int
	modelName string
}

// NewCitationBuilder creates a builder whose enhanced citations report the
// given embedding dimension and model name as provenance.
func NewCitationBuilder(dimension int, modelName string) *CitationBuilder {
	return &CitationBuilder{dimension: dimension, modelName: modelName}
}

// CreateBasic maps chunks one-to-one, in order, to basic citations.
func (b *CitationBuilder) CreateBasic(chunks []models.DocumentChunk) []models.Citation {
	citations := make([]models.Citation, 0, len(chunks))
	for _, chunk := range chunks {
		citations = append(citations, b.baseCitation(chunk))
	}
	return citations
}

// CreateEnhanced builds citations with embedding provenance paired
// positionally from hits. The pairing is only valid when hits has the same
// length and order as chunks; on a length mismatch provenance is omitted
// entirely rather than misattributed.
func (b *CitationBuilder) CreateEnhanced(chunks []models.DocumentChunk, hits []models.RawSearchHit) []models.EnhancedCitation {
	if len(hits) > 0 && len(hits) != len(chunks) {
		logger.Warn("Chunk/vector result count mismatch, omitting embedding provenance",
			"chunks", len(chunks), "hits", len(hits))
		hits = nil
	}

	citations := make([]models.EnhancedCitation, 0, len(chunks))
	for i, chunk := range chunks {
		citation := models.EnhancedCitation{Citation: b.baseCitation(chunk)}
		if i < len(hits) {
			citation.EmbeddingInfo = &models.EmbeddingInfo{
				VectorID:        hits[i].VectorID,
				SimilarityScore: hits[i].Score,
				Dimension:       b.dimension,
				ModelName:       b.modelName,
			}
		}
		citations = append(citations, citation)
	}
	return citations
}

func (b *CitationBuilder) baseCitation(chunk models.DocumentChunk) models.Citation {
	return models.Citation{
		DocID:           metaStringOr(chunk, models.MetaDocID, "Unknown"),
		DocumentName:    metaStringOr(chunk, models.MetaFilename, "Unknown"),
		PageNumber:      metaInt(chunk, models.MetaPageNumber),
		ParagraphNumber: metaInt(chunk, models.MetaParagraphNumber),
		ContentSnippet:  createSnippet(chunk.Content),
		PositionRect:    chunk.PositionRect(),
	}
}

// createSnippet truncates content at exactly snippetMaxLength characters,
// appending an ellipsis when anything was cut.
func createSnippet(content string) string {
	runes := []rune(content)
	if len(runes) > snippetMaxLength {
		return string(runes[:snippetMaxLength]) + "..."
	}
	return content
}

func metaStringOr(chunk models.DocumentChunk, key, fallback string) string {
	if s, ok := chunk.MetaString(key); ok && s != "" {
		return s
	}
	return fallback
}

func metaInt(chunk models.DocumentChunk, key string) *int {
	f, ok := asFloat(chunk.Metadata[key])
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}
