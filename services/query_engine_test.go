package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"document-query-platform/internal/config"
	"document-query-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	results     []models.Retrieved
	chunksByDoc map[string][]models.ScoredChunk
	docs        map[string]models.DocumentRecord
	healthy     bool
	searchErr   error
	lastK       int
}

func (f *fakeRetriever) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Retrieved, error) {
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeRetriever) ChunksByDocument(ctx context.Context, docID string) ([]models.ScoredChunk, error) {
	return f.chunksByDoc[docID], nil
}

func (f *fakeRetriever) ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error) {
	return f.docs, nil
}

func (f *fakeRetriever) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

type fakeGenerator struct {
	answer      string
	answerErr   error
	themes      []models.ThemeDescriptor
	answerCalls int
	themeCalls  int
	lastContext string
	lastPreview string
}

func (f *fakeGenerator) AnswerQuery(ctx context.Context, query, contextText string) (string, error) {
	f.answerCalls++
	f.lastContext = contextText
	return f.answer, f.answerErr
}

func (f *fakeGenerator) ExtractThemes(ctx context.Context, documentsText string) ([]models.ThemeDescriptor, error) {
	f.themeCalls++
	f.lastPreview = documentsText
	return f.themes, nil
}

type fakeLister struct {
	docs map[string]models.DocumentRecord
	err  error
}

func (f *fakeLister) ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error) {
	return f.docs, f.err
}

func engineConfig() *config.Config {
	return &config.Config{
		SearchResultLimit:     10,
		ThemeSearchLimit:      20,
		ThemeSampleDocs:       10,
		ThemeSampleChunks:     2,
		VectorDimensions:      768,
		GoogleEmbeddingsModel: "text-embedding-004",
	}
}

func rawHit(docID, content string, score float64) models.Retrieved {
	return models.NewRetrievedRaw(&models.RawSearchHit{
		VectorID: docID + "-0",
		Content:  content,
		Metadata: map[string]any{"doc_id": docID, "filename": docID + ".pdf"},
		Score:    score,
	})
}

func TestProcessQueryRelevanceThreshold(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-1", "refund policy details", 0.9),
		rawHit("doc-2", "refund window is 30 days", 0.6),
		rawHit("doc-3", "unrelated shipping info", 0.3),
	}}
	generator := &fakeGenerator{answer: "Refunds are allowed within 30 days."}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ProcessQuery(context.Background(), "refund policy",
		models.FilterSpec{"relevance_threshold": 0.5}, nil)
	require.NoError(t, err)

	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "Refunds are allowed within 30 days.", resp.Answers[0])
	assert.Len(t, resp.Citations, 2)
	assert.Equal(t, 2, resp.Metadata["total_results"])
	assert.Equal(t, "all", resp.Metadata["documents_searched"])
	assert.Equal(t, 10, retriever.lastK)
}

func TestProcessQueryJoinsContextWithBlankLines(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-1", "first passage", 0.9),
		rawHit("doc-2", "second passage", 0.8),
	}}
	generator := &fakeGenerator{answer: "ok"}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	_, err := engine.ProcessQuery(context.Background(), "anything", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "first passage\n\nsecond passage", generator.lastContext)
}

func TestProcessQuerySelectionExcludesEverything(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-B", "content from doc B", 0.9),
	}}
	generator := &fakeGenerator{answer: "should not be called"}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ProcessQuery(context.Background(), "anything", nil, []string{"doc-A"})
	require.NoError(t, err)

	require.Len(t, resp.Answers, 1)
	assert.Contains(t, resp.Answers[0], "No relevant documents found")
	assert.Contains(t, resp.Answers[0], "1 selected documents")
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 0, resp.Metadata["total_results"])
	assert.Equal(t, 0, generator.answerCalls)
}

func TestProcessQueryRetrieverErrorPropagates(t *testing.T) {
	retriever := &fakeRetriever{searchErr: errors.New("index offline")}
	engine := NewQueryEngine(retriever, &fakeGenerator{}, &fakeLister{}, engineConfig())

	_, err := engine.ProcessQuery(context.Background(), "anything", nil, nil)
	require.EqualError(t, err, "index offline")
}

func TestProcessQueryGeneratorErrorPropagates(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{rawHit("doc-1", "x", 0.9)}}
	generator := &fakeGenerator{answerErr: errors.New("model unavailable")}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	_, err := engine.ProcessQuery(context.Background(), "anything", nil, nil)
	require.EqualError(t, err, "model unavailable")
}

func TestProcessQuerySkipsMalformedResults(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-1", "good", 0.9),
		{Kind: models.RetrievedKind(99)},
		{Kind: models.RetrievedRaw},
	}}
	generator := &fakeGenerator{answer: "ok"}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ProcessQuery(context.Background(), "anything", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Metadata["total_results"])
}

func TestProcessEnhancedQueryKeepsProvenanceAligned(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-1", "kept high", 0.9),
		rawHit("doc-2", "dropped low", 0.2),
		rawHit("doc-3", "kept medium", 0.7),
	}}
	generator := &fakeGenerator{answer: "ok"}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ProcessEnhancedQuery(context.Background(), "anything",
		models.FilterSpec{"relevance_threshold": 0.5}, nil)
	require.NoError(t, err)

	require.Len(t, resp.Citations, 2)
	require.NotNil(t, resp.Citations[0].EmbeddingInfo)
	assert.Equal(t, "doc-1-0", resp.Citations[0].EmbeddingInfo.VectorID)
	require.NotNil(t, resp.Citations[1].EmbeddingInfo)
	assert.Equal(t, "doc-3-0", resp.Citations[1].EmbeddingInfo.VectorID)
	assert.Equal(t, 0.7, resp.Citations[1].EmbeddingInfo.SimilarityScore)
}

func TestProcessEnhancedQueryOmitsProvenanceForPreNormalizedChunks(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		models.NewRetrievedChunk(&models.DocumentChunk{
			Content:  "already normalized",
			Metadata: map[string]any{"doc_id": "doc-1"},
		}),
	}}
	generator := &fakeGenerator{answer: "ok"}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ProcessEnhancedQuery(context.Background(), "anything", nil, nil)
	require.NoError(t, err)
	require.Len(t, resp.Citations, 1)
	assert.Nil(t, resp.Citations[0].EmbeddingInfo)
}

func TestExtractThemesResolvesIndices(t *testing.T) {
	retriever := &fakeRetriever{results: []models.Retrieved{
		rawHit("doc-1", "tax law changes", 0.9),
		rawHit("doc-2", "quarterly earnings", 0.8),
	}}
	generator := &fakeGenerator{themes: []models.ThemeDescriptor{
		{ThemeName: "Taxation", DocumentIndices: []int{0, 7, -1}},
		{ThemeName: "Finance", DocumentIndices: []int{1}},
	}}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ExtractThemes(context.Background(), "business topics", nil)
	require.NoError(t, err)

	assert.Equal(t, 20, retriever.lastK)
	assert.Equal(t, []string{"Taxation", "Finance"}, resp.Themes)

	// Out-of-range indices are dropped, valid ones resolve.
	assert.Equal(t, []string{"doc-1"}, resp.SupportingDocuments["Taxation"])
	require.Len(t, resp.DetailedCitations["Taxation"], 1)
	assert.Equal(t, "doc-1", resp.DetailedCitations["Taxation"][0].DocID)
	assert.Equal(t, []string{"doc-2"}, resp.SupportingDocuments["Finance"])
}

func TestExtractThemesEmptyCandidatesSkipsGenerator(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ExtractThemes(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Themes)
	assert.Empty(t, resp.SupportingDocuments)
	assert.Equal(t, 0, resp.Metadata["total_results"])
	assert.Equal(t, 0, generator.themeCalls)
}

func TestExtractThemesPreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	retriever := &fakeRetriever{results: []models.Retrieved{rawHit("doc-1", long, 0.9)}}
	generator := &fakeGenerator{themes: nil}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	_, err := engine.ExtractThemes(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Document 1: %s...", strings.Repeat("x", 500)), generator.lastPreview)
}

func TestExtractDocumentThemes(t *testing.T) {
	retriever := &fakeRetriever{chunksByDoc: map[string][]models.ScoredChunk{
		"doc-1": {
			{Content: "chunk one", Metadata: map[string]any{"doc_id": "doc-1"}},
			{Content: "chunk two", Metadata: map[string]any{"doc_id": "doc-1"}},
		},
	}}
	generator := &fakeGenerator{themes: []models.ThemeDescriptor{
		{ThemeName: "Main Topic", DocumentIndices: []int{0, 1}},
	}}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ExtractDocumentThemes(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Main Topic"}, resp.Themes)
	assert.Equal(t, []string{"doc-1"}, resp.SupportingDocuments["Main Topic"])
	assert.Len(t, resp.DetailedCitations["Main Topic"], 2)
	assert.Equal(t, "doc-1", resp.Metadata["document_id"])
	assert.Equal(t, 2, resp.Metadata["total_results"])
	assert.True(t, strings.HasPrefix(generator.lastPreview, "Chunk 1: "))
}

func TestExtractDocumentThemesNoChunks(t *testing.T) {
	retriever := &fakeRetriever{chunksByDoc: map[string][]models.ScoredChunk{}}
	generator := &fakeGenerator{}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ExtractDocumentThemes(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, resp.Themes)
	assert.Equal(t, 0, generator.themeCalls)
}

func TestExtractCorpusThemesSamplesAndDedupes(t *testing.T) {
	cfg := engineConfig()
	cfg.ThemeSampleDocs = 2
	cfg.ThemeSampleChunks = 1

	retriever := &fakeRetriever{
		docs: map[string]models.DocumentRecord{
			"doc-a": {Filename: "a.pdf"},
			"doc-b": {Filename: "b.pdf"},
			"doc-c": {Filename: "c.pdf"},
		},
		chunksByDoc: map[string][]models.ScoredChunk{
			"doc-a": {
				{Content: "a first", Metadata: map[string]any{"doc_id": "doc-a"}},
				{Content: "a second", Metadata: map[string]any{"doc_id": "doc-a"}},
			},
			"doc-b": {{Content: "b first", Metadata: map[string]any{"doc_id": "doc-b"}}},
			"doc-c": {{Content: "c first", Metadata: map[string]any{"doc_id": "doc-c"}}},
		},
	}
	generator := &fakeGenerator{themes: []models.ThemeDescriptor{
		{ThemeName: "Shared", DocumentIndices: []int{0, 0, 1}},
	}}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, cfg)

	resp, err := engine.ExtractCorpusThemes(context.Background())
	require.NoError(t, err)

	// Sample is capped at 2 documents x 1 chunk, chosen in sorted ID order,
	// so doc-c never appears.
	assert.Equal(t, 3, resp.Metadata["total_documents"])
	assert.Equal(t, 2, resp.Metadata["total_results"])
	assert.Equal(t, []string{"doc-a", "doc-b"}, resp.SupportingDocuments["Shared"])
	assert.Len(t, resp.DetailedCitations["Shared"], 3)
}

func TestExtractCorpusThemesEmptyCorpus(t *testing.T) {
	retriever := &fakeRetriever{docs: map[string]models.DocumentRecord{}}
	generator := &fakeGenerator{}
	engine := NewQueryEngine(retriever, generator, &fakeLister{}, engineConfig())

	resp, err := engine.ExtractCorpusThemes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp.Themes)
	assert.Equal(t, 0, generator.themeCalls)
}

func TestListAllDocumentsSwallowsErrors(t *testing.T) {
	engine := NewQueryEngine(&fakeRetriever{}, &fakeGenerator{},
		&fakeLister{err: errors.New("store down")}, engineConfig())

	resp := engine.ListAllDocuments(context.Background())
	assert.Empty(t, resp.Documents)
	assert.Equal(t, 0, resp.Count)
}

func TestListAllDocumentsSortedByID(t *testing.T) {
	engine := NewQueryEngine(&fakeRetriever{}, &fakeGenerator{}, &fakeLister{
		docs: map[string]models.DocumentRecord{
			"doc-b": {Filename: "b.pdf"},
			"doc-a": {Filename: "a.pdf"},
		},
	}, engineConfig())

	resp := engine.ListAllDocuments(context.Background())
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "doc-a", resp.Documents[0].ID)
	assert.Equal(t, "doc-b", resp.Documents[1].ID)
}

func TestTestConnection(t *testing.T) {
	engine := NewQueryEngine(&fakeRetriever{healthy: true}, &fakeGenerator{}, &fakeLister{}, engineConfig())
	assert.True(t, engine.TestConnection(context.Background()))

	engine = NewQueryEngine(&fakeRetriever{healthy: false}, &fakeGenerator{}, &fakeLister{}, engineConfig())
	assert.False(t, engine.TestConnection(context.Background()))
}
