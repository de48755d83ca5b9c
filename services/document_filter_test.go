package services

import (
	"testing"

	"document-query-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkWithMeta(content string, score float64, meta map[string]any) models.DocumentChunk {
	return models.DocumentChunk{Content: content, Metadata: meta, SimilarityScore: score}
}

func TestApplyEmptySpecIsIdentity(t *testing.T) {
	filter := DocumentFilter{}
	chunks := []models.DocumentChunk{
		chunkWithMeta("a", 0.9, map[string]any{"doc_id": "doc-1"}),
		chunkWithMeta("b", 0.1, map[string]any{"doc_id": "doc-2"}),
	}

	assert.Equal(t, chunks, filter.Apply(chunks, nil))
	assert.Equal(t, chunks, filter.Apply(chunks, models.FilterSpec{}))
}

func TestApplyPreservesOrder(t *testing.T) {
	filter := DocumentFilter{}
	chunks := []models.DocumentChunk{
		chunkWithMeta("first", 0.9, map[string]any{"author": "smith"}),
		chunkWithMeta("second", 0.8, map[string]any{"author": "jones"}),
		chunkWithMeta("third", 0.7, map[string]any{"author": "smith"}),
	}

	filtered := filter.Apply(chunks, models.FilterSpec{"author": "smith"})
	require.Len(t, filtered, 2)
	assert.Equal(t, "first", filtered[0].Content)
	assert.Equal(t, "third", filtered[1].Content)
}

func TestRelevanceThresholdBoundaryInclusive(t *testing.T) {
	filter := DocumentFilter{}
	chunks := []models.DocumentChunk{
		chunkWithMeta("at", 0.5, nil),
		chunkWithMeta("above", 0.51, nil),
		chunkWithMeta("below", 0.49, nil),
	}

	filtered := filter.Apply(chunks, models.FilterSpec{"relevance_threshold": 0.5})
	require.Len(t, filtered, 2)
	assert.Equal(t, "at", filtered[0].Content)
	assert.Equal(t, "above", filtered[1].Content)
}

func TestRelevanceThresholdAcceptsIntValue(t *testing.T) {
	filter := DocumentFilter{}
	chunks := []models.DocumentChunk{
		chunkWithMeta("low", 0.9, nil),
		chunkWithMeta("high", 1.0, nil),
	}

	filtered := filter.Apply(chunks, models.FilterSpec{"relevance_threshold": 1})
	require.Len(t, filtered, 1)
	assert.Equal(t, "high", filtered[0].Content)
}

func TestDocumentIDsFilter(t *testing.T) {
	filter := DocumentFilter{}
	chunks := []models.DocumentChunk{
		chunkWithMeta("a", 0, map[string]any{"doc_id": "doc-1"}),
		chunkWithMeta("b", 0, map[string]any{"doc_id": "doc-2"}),
		chunkWithMeta("c", 0, map[string]any{"doc_id": "doc-3"}),
	}

	filtered := filter.Apply(chunks, models.FilterSpec{"document_ids": []any{"doc-1", "doc-3"}})
	require.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].Content)
	assert.Equal(t, "c", filtered[1].Content)

	filtered = filter.Apply(chunks, models.FilterSpec{"document_ids": []string{"doc-2"}})
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].Content)
}

func TestDateRangeLexicographic(t *testing.T) {
	filter := DocumentFilter{}
	spec := models.FilterSpec{"date_range": map[string]any{"start": "2024-01-01", "end": "2024-06-30"}}

	inside := chunkWithMeta("inside", 0, map[string]any{"document_date": "2024-03-15"})
	before := chunkWithMeta("before", 0, map[string]any{"document_date": "2023-12-31"})
	after := chunkWithMeta("after", 0, map[string]any{"document_date": "2024-07-01"})
	onStart := chunkWithMeta("on start", 0, map[string]any{"document_date": "2024-01-01"})

	assert.True(t, filter.Match(inside, spec))
	assert.False(t, filter.Match(before, spec))
	assert.False(t, filter.Match(after, spec))
	assert.True(t, filter.Match(onStart, spec))
}

func TestDateRangeMissingDatePassesVacuously(t *testing.T) {
	filter := DocumentFilter{}
	spec := models.FilterSpec{"date_range": map[string]any{"start": "2024-01-01", "end": "2024-06-30"}}

	noDate := chunkWithMeta("no date", 0, map[string]any{"doc_id": "doc-1"})
	nonString := chunkWithMeta("bad date", 0, map[string]any{"document_date": 2024})

	assert.True(t, filter.Match(noDate, spec))
	assert.True(t, filter.Match(nonString, spec))
}

func TestDateRangeNonMapFallsThroughToMetadata(t *testing.T) {
	filter := DocumentFilter{}

	// A scalar date_range is not a range; it is matched like any other
	// metadata key instead.
	chunk := chunkWithMeta("a", 0, map[string]any{"date_range": "2024"})
	assert.True(t, filter.Match(chunk, models.FilterSpec{"date_range": "2024"}))
	assert.False(t, filter.Match(chunk, models.FilterSpec{"date_range": "2025"}))
}

func TestMetadataScalarAndListMatch(t *testing.T) {
	filter := DocumentFilter{}
	chunk := chunkWithMeta("a", 0, map[string]any{"document_type": "pdf", "page_number": 3})

	assert.True(t, filter.Match(chunk, models.FilterSpec{"document_type": "pdf"}))
	assert.False(t, filter.Match(chunk, models.FilterSpec{"document_type": "docx"}))
	assert.True(t, filter.Match(chunk, models.FilterSpec{"document_type": []any{"docx", "pdf"}}))

	// Numbers compare by value regardless of Go type.
	assert.True(t, filter.Match(chunk, models.FilterSpec{"page_number": float64(3)}))
}

func TestUnknownKeyAbsentFromMetadataIsIgnored(t *testing.T) {
	filter := DocumentFilter{}
	chunk := chunkWithMeta("a", 0, map[string]any{"doc_id": "doc-1"})

	assert.True(t, filter.Match(chunk, models.FilterSpec{"department": "legal"}))
}
