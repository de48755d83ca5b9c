package services

import (
	"strings"
	"testing"

	"document-query-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBasicMapsChunksInOrder(t *testing.T) {
	builder := NewCitationBuilder(768, "text-embedding-004")
	chunks := []models.DocumentChunk{
		{
			Content: "first passage",
			Metadata: map[string]any{
				"doc_id":           "doc-1",
				"filename":         "report.pdf",
				"page_number":      2,
				"paragraph_number": 5,
				"position":         map[string]any{"page": 2.0, "rect": []any{1.0, 2.0, 3.0, 4.0}},
			},
		},
		{Content: "second passage", Metadata: map[string]any{"doc_id": "doc-2", "filename": "memo.pdf"}},
	}

	citations := builder.CreateBasic(chunks)
	require.Len(t, citations, 2)

	assert.Equal(t, "doc-1", citations[0].DocID)
	assert.Equal(t, "report.pdf", citations[0].DocumentName)
	require.NotNil(t, citations[0].PageNumber)
	assert.Equal(t, 2, *citations[0].PageNumber)
	require.NotNil(t, citations[0].ParagraphNumber)
	assert.Equal(t, 5, *citations[0].ParagraphNumber)
	assert.Equal(t, []float64{1, 2, 3, 4}, citations[0].PositionRect)
	assert.Equal(t, "first passage", citations[0].ContentSnippet)

	assert.Equal(t, "doc-2", citations[1].DocID)
	assert.Nil(t, citations[1].PageNumber)
	assert.Nil(t, citations[1].PositionRect)
}

func TestCreateBasicMissingMetadataFallsBack(t *testing.T) {
	builder := NewCitationBuilder(768, "text-embedding-004")

	citations := builder.CreateBasic([]models.DocumentChunk{{Content: "orphan"}})
	require.Len(t, citations, 1)
	assert.Equal(t, "Unknown", citations[0].DocID)
	assert.Equal(t, "Unknown", citations[0].DocumentName)
}

func TestSnippetTruncation(t *testing.T) {
	builder := NewCitationBuilder(768, "text-embedding-004")

	short := strings.Repeat("a", 200)
	long := strings.Repeat("b", 201)

	citations := builder.CreateBasic([]models.DocumentChunk{
		{Content: short}, {Content: long},
	})
	require.Len(t, citations, 2)
	assert.Equal(t, short, citations[0].ContentSnippet)
	assert.Equal(t, strings.Repeat("b", 200)+"...", citations[1].ContentSnippet)
	assert.Len(t, citations[1].ContentSnippet, 203)
}

func TestCreateEnhancedPairsProvenancePositionally(t *testing.T) {
	builder := NewCitationBuilder(768, "text-embedding-004")
	chunks := []models.DocumentChunk{
		{Content: "a", Metadata: map[string]any{"doc_id": "doc-1"}},
		{Content: "b", Metadata: map[string]any{"doc_id": "doc-2"}},
	}
	hits := []models.RawSearchHit{
		{VectorID: "doc-1-0", Score: 0.91},
		{VectorID: "doc-2-3", Score: 0.77},
	}

	citations := builder.CreateEnhanced(chunks, hits)
	require.Len(t, citations, 2)

	require.NotNil(t, citations[0].EmbeddingInfo)
	assert.Equal(t, "doc-1-0", citations[0].EmbeddingInfo.VectorID)
	assert.Equal(t, 0.91, citations[0].EmbeddingInfo.SimilarityScore)
	assert.Equal(t, 768, citations[0].EmbeddingInfo.Dimension)
	assert.Equal(t, "text-embedding-004", citations[0].EmbeddingInfo.ModelName)

	require.NotNil(t, citations[1].EmbeddingInfo)
	assert.Equal(t, "doc-2-3", citations[1].EmbeddingInfo.VectorID)
}

func TestCreateEnhancedLengthMismatchOmitsProvenance(t *testing.T) {
	builder := NewCitationBuilder(768, "text-embedding-004")
	chunks := []models.DocumentChunk{
		{Content: "a", Metadata: map[string]any{"doc_id": "doc-1"}},
		{Content: "b", Metadata: map[string]any{"doc_id": "doc-2"}},
	}
	hits := []models.RawSearchHit{{VectorID: "doc-1-0", Score: 0.91}}

	citations := builder.CreateEnhanced(chunks, hits)
	require.Len(t, citations, 2)
	assert.Nil(t, citations[0].EmbeddingInfo)
	assert.Nil(t, citations[1].EmbeddingInfo)
}
