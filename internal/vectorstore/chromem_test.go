package vectorstore

import (
	"testing"

	"document-query-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkDocumentBuildsParagraphChunks(t *testing.T) {
	doc := &models.ProcessedDocument{
		ID: "doc-1",
		Metadata: models.DocumentMetadata{
			Filename:     "report.pdf",
			Author:       "smith",
			DocumentDate: "2024-03-15",
			DocumentType: "pdf",
		},
		Pages: []models.DocumentPage{
			{
				PageNumber: 1,
				Paragraphs: []models.DocumentParagraph{
					{Text: "first paragraph", Position: models.TextPosition{Page: 1, ParagraphIndex: 0, Rect: []float64{1, 2, 3, 4}}},
					{Text: "", Position: models.TextPosition{Page: 1, ParagraphIndex: 1}},
					{Text: "second paragraph", Position: models.TextPosition{Page: 1, ParagraphIndex: 2}},
				},
			},
			{
				PageNumber: 2,
				Paragraphs: []models.DocumentParagraph{
					{Text: "third paragraph", Position: models.TextPosition{Page: 2, ParagraphIndex: 0}},
				},
			},
		},
	}

	chunks := chunkDocument(doc)
	require.Len(t, chunks, 3)

	first := chunks[0]
	assert.Equal(t, "first paragraph", first.Content)
	assert.Equal(t, "doc-1", first.Metadata[models.MetaDocID])
	assert.Equal(t, "report.pdf", first.Metadata[models.MetaFilename])
	assert.Equal(t, 1, first.Metadata[models.MetaPageNumber])
	assert.Equal(t, 0, first.Metadata[models.MetaParagraphNumber])
	assert.Equal(t, "smith", first.Metadata[models.MetaAuthor])
	assert.Equal(t, "2024-03-15", first.Metadata[models.MetaDocumentDate])

	position, ok := first.Metadata[models.MetaPosition].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 4}, position["rect"])

	assert.Equal(t, 2, chunks[2].Metadata[models.MetaPageNumber])
}

func TestMetadataRoundTrip(t *testing.T) {
	original := map[string]any{
		models.MetaDocID:           "doc-1",
		models.MetaFilename:        "report.pdf",
		models.MetaDocumentDate:    "2024-03-15",
		models.MetaPageNumber:      3,
		models.MetaParagraphNumber: 7,
		models.MetaPosition: map[string]any{
			"page": 3,
			"rect": []float64{10.5, 20, 30.5, 40},
		},
	}

	decoded := decodeMetadata(encodeMetadata(original))

	// Plain strings survive untouched, even ones that look like numbers.
	assert.Equal(t, "doc-1", decoded[models.MetaDocID])
	assert.Equal(t, "2024-03-15", decoded[models.MetaDocumentDate])

	// Structured keys come back as JSON values.
	assert.Equal(t, float64(3), decoded[models.MetaPageNumber])
	assert.Equal(t, float64(7), decoded[models.MetaParagraphNumber])

	position, ok := decoded[models.MetaPosition].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{10.5, float64(20), 30.5, float64(40)}, position["rect"])
}

func TestDecodedPositionFeedsPositionRect(t *testing.T) {
	encoded := encodeMetadata(map[string]any{
		models.MetaPosition: map[string]any{"page": 1, "rect": []float64{1, 2, 3, 4}},
	})

	chunk := models.DocumentChunk{Metadata: decodeMetadata(encoded)}
	assert.Equal(t, []float64{1, 2, 3, 4}, chunk.PositionRect())
}

func TestEncodeMetadataNumericStringStaysString(t *testing.T) {
	encoded := encodeMetadata(map[string]any{models.MetaDocumentDate: "2024"})
	decoded := decodeMetadata(encoded)
	assert.Equal(t, "2024", decoded[models.MetaDocumentDate])
}
