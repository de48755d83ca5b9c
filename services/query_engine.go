package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	noResultsMessage   = "No relevant documents found matching the criteria."
	themePreviewLength = 500
)

// Retriever is the similarity index consumed by the query engine.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Retrieved, error)
	ChunksByDocument(ctx context.Context, docID string) ([]models.ScoredChunk, error)
	ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error)
	HealthCheck(ctx context.Context) bool
}

// Generator is the generative answering collaborator.
type Generator interface {
	AnswerQuery(ctx context.Context, query, contextText string) (string, error)
	ExtractThemes(ctx context.Context, documentsText string) ([]models.ThemeDescriptor, error)
}

// DocumentLister supplies the full document directory used by search, sort
// and pagination.
type DocumentLister interface {
	ListDocuments(ctx context.Context) (map[string]models.DocumentRecord, error)
}

// QueryEngine orchestrates the retrieval pipeline: retrieve, restrict to
// selection, filter, build context, answer, cite. It holds only read-only
// references to its collaborators; concurrent queries share no engine state.
type QueryEngine struct {
	retriever Retriever
	generator Generator
	lister    DocumentLister
	filter    DocumentFilter
	citations *CitationBuilder

	searchLimit       int
	themeSearchLimit  int
	themeSampleDocs   int
	themeSampleChunks int
}

func NewQueryEngine(retriever Retriever, generator Generator, lister DocumentLister, cfg *config.Config) *QueryEngine {
	return &QueryEngine{
		retriever:         retriever,
		generator:         generator,
		lister:            lister,
		citations:         NewCitationBuilder(cfg.VectorDimensions, cfg.GoogleEmbeddingsModel),
		searchLimit:       cfg.SearchResultLimit,
		themeSearchLimit:  cfg.ThemeSearchLimit,
		themeSampleDocs:   cfg.ThemeSampleDocs,
		themeSampleChunks: cfg.ThemeSampleChunks,
	}
}

// chunkHit pairs a normalized chunk with the raw hit it came from, so
// enhanced citations can attach provenance without relying on index
// alignment across pipeline stages.
type chunkHit struct {
	chunk models.DocumentChunk
	hit   *models.RawSearchHit
}

// normalizeResults resolves the retriever's tagged results into uniform
// chunks. Unrecognized shapes are logged and skipped, never fatal.
func normalizeResults(results []models.Retrieved) []chunkHit {
	pairs := make([]chunkHit, 0, len(results))
	for _, result := range results {
		switch result.Kind {
		case models.RetrievedRaw:
			if result.Raw == nil {
				logger.Warn("Dropping raw search result without payload")
				continue
			}
			pairs = append(pairs, chunkHit{
				chunk: models.DocumentChunk{
					Content:         result.Raw.Content,
					Metadata:        result.Raw.Metadata,
					SimilarityScore: result.Raw.Score,
				},
				hit: result.Raw,
			})
		case models.RetrievedChunk:
			if result.Chunk == nil {
				logger.Warn("Dropping chunk search result without payload")
				continue
			}
			pairs = append(pairs, chunkHit{chunk: *result.Chunk})
		default:
			logger.Warn("Dropping search result of unknown kind", "kind", int(result.Kind))
		}
	}
	return pairs
}

func chunksOf(pairs []chunkHit) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, 0, len(pairs))
	for _, pair := range pairs {
		chunks = append(chunks, pair.chunk)
	}
	return chunks
}

// ProcessQuery runs the full retrieval pipeline and answers with basic
// citations. Retriever and generator failures propagate unchanged.
func (e *QueryEngine) ProcessQuery(ctx context.Context, query string, filters models.FilterSpec, selectedDocumentIDs []string) (*models.QueryResponse, error) {
	tracer := otel.Tracer("query-engine")
	ctx, span := tracer.Start(ctx, "engine.process_query")
	defer span.End()

	filtered, _, err := e.retrieveAndFilter(ctx, query, e.searchLimit, filters, selectedDocumentIDs)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("engine.filtered_results", len(filtered)))

	if len(filtered) == 0 {
		return &models.QueryResponse{
			Answers:   []string{emptyResultMessage(selectedDocumentIDs)},
			Citations: []models.Citation{},
			Metadata:  e.emptyResultMetadata(query, filters, selectedDocumentIDs),
		}, nil
	}

	answer, err := e.generator.AnswerQuery(ctx, query, joinChunkContents(filtered))
	if err != nil {
		return nil, err
	}

	return &models.QueryResponse{
		Answers:   []string{answer},
		Citations: e.citations.CreateBasic(filtered),
		Metadata:  e.resultMetadata(query, filters, selectedDocumentIDs, len(filtered)),
	}, nil
}

// ProcessEnhancedQuery is ProcessQuery with embedding provenance attached to
// the citations.
func (e *QueryEngine) ProcessEnhancedQuery(ctx context.Context, query string, filters models.FilterSpec, selectedDocumentIDs []string) (*models.EnhancedQueryResponse, error) {
	tracer := otel.Tracer("query-engine")
	ctx, span := tracer.Start(ctx, "engine.process_enhanced_query")
	defer span.End()

	filtered, hits, err := e.retrieveAndFilter(ctx, query, e.searchLimit, filters, selectedDocumentIDs)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("engine.filtered_results", len(filtered)))

	if len(filtered) == 0 {
		return &models.EnhancedQueryResponse{
			Answers:   []string{emptyResultMessage(selectedDocumentIDs)},
			Citations: []models.EnhancedCitation{},
			Metadata:  e.emptyResultMetadata(query, filters, selectedDocumentIDs),
		}, nil
	}

	answer, err := e.generator.AnswerQuery(ctx, query, joinChunkContents(filtered))
	if err != nil {
		return nil, err
	}

	return &models.EnhancedQueryResponse{
		Answers:   []string{answer},
		Citations: e.citations.CreateEnhanced(filtered, hits),
		Metadata:  e.resultMetadata(query, filters, selectedDocumentIDs, len(filtered)),
	}, nil
}

// retrieveAndFilter runs the shared narrowing stages: retrieve, normalize,
// restrict to the allow-list, filter. It returns the surviving chunks and,
// when every survivor originated from a raw hit, the aligned hits for
// provenance.
func (e *QueryEngine) retrieveAndFilter(ctx context.Context, query string, k int, filters models.FilterSpec, selectedDocumentIDs []string) ([]models.DocumentChunk, []models.RawSearchHit, error) {
	results, err := e.retriever.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, nil, err
	}

	pairs := normalizeResults(results)
	logger.Info("Retrieved initial results", "query", truncateForLog(query), "count", len(pairs))

	if len(selectedDocumentIDs) > 0 {
		pairs = restrictToSelection(pairs, selectedDocumentIDs)
		logger.Info("After document selection filtering", "count", len(pairs))
	}

	survivors := make([]chunkHit, 0, len(pairs))
	for _, pair := range pairs {
		if e.filter.Match(pair.chunk, filters) {
			survivors = append(survivors, pair)
		}
	}
	logger.Info("After additional filtering", "count", len(survivors))

	hits := make([]models.RawSearchHit, 0, len(survivors))
	for _, pair := range survivors {
		if pair.hit == nil {
			hits = nil
			break
		}
		hits = append(hits, *pair.hit)
	}

	return chunksOf(survivors), hits, nil
}

func restrictToSelection(pairs []chunkHit, selectedDocumentIDs []string) []chunkHit {
	allowed := make(map[string]bool, len(selectedDocumentIDs))
	for _, id := range selectedDocumentIDs {
		allowed[id] = true
	}

	kept := make([]chunkHit, 0, len(pairs))
	for _, pair := range pairs {
		if allowed[pair.chunk.DocID()] {
			kept = append(kept, pair)
		}
	}
	return kept
}

func emptyResultMessage(selectedDocumentIDs []string) string {
	message := noResultsMessage
	if len(selectedDocumentIDs) > 0 {
		message += fmt.Sprintf(" Search was limited to %d selected documents.", len(selectedDocumentIDs))
	}
	return message
}

func (e *QueryEngine) emptyResultMetadata(query string, filters models.FilterSpec, selectedDocumentIDs []string) map[string]any {
	return map[string]any{
		"query":                 query,
		"filters":               filters,
		"selected_document_ids": selectedDocumentIDs,
		"total_results":         0,
	}
}

func (e *QueryEngine) resultMetadata(query string, filters models.FilterSpec, selectedDocumentIDs []string, totalResults int) map[string]any {
	var documentsSearched any = "all"
	if len(selectedDocumentIDs) > 0 {
		documentsSearched = len(selectedDocumentIDs)
	}
	return map[string]any{
		"query":                 query,
		"filters":               filters,
		"selected_document_ids": selectedDocumentIDs,
		"total_results":         totalResults,
		"documents_searched":    documentsSearched,
	}
}

func joinChunkContents(chunks []models.DocumentChunk) string {
	contents := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, chunk.Content)
	}
	return strings.Join(contents, "\n\n")
}

// ExtractThemes identifies themes across the chunks retrieved for a query,
// with the filter spec applied before theme analysis.
func (e *QueryEngine) ExtractThemes(ctx context.Context, query string, filters models.FilterSpec) (*models.ThemeResponse, error) {
	tracer := otel.Tracer("query-engine")
	ctx, span := tracer.Start(ctx, "engine.extract_themes")
	defer span.End()

	results, err := e.retriever.SimilaritySearch(ctx, query, e.themeSearchLimit)
	if err != nil {
		return nil, err
	}

	chunks := chunksOf(normalizeResults(results))
	filtered := e.filter.Apply(chunks, filters)
	span.SetAttributes(attribute.Int("engine.theme_candidates", len(filtered)))

	if len(filtered) == 0 {
		return emptyThemeResponse(map[string]any{
			"query": query, "filters": filters, "total_results": 0,
		}), nil
	}

	descriptors, err := e.generator.ExtractThemes(ctx, buildThemePreview(filtered, "Document"))
	if err != nil {
		return nil, err
	}

	names, supporting, citations := e.resolveThemes(descriptors, filtered, false)
	return &models.ThemeResponse{
		Themes:              names,
		SupportingDocuments: supporting,
		DetailedCitations:   citations,
		Metadata: map[string]any{
			"query":         query,
			"filters":       filters,
			"total_results": len(filtered),
		},
	}, nil
}

// ExtractDocumentThemes identifies the themes of a single document from all
// of its indexed chunks.
func (e *QueryEngine) ExtractDocumentThemes(ctx context.Context, documentID string) (*models.ThemeResponse, error) {
	raw, err := e.retriever.ChunksByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks := scoredToChunks(raw)
	if len(chunks) == 0 {
		return emptyThemeResponse(map[string]any{
			"document_id": documentID, "total_results": 0,
		}), nil
	}

	descriptors, err := e.generator.ExtractThemes(ctx, buildThemePreview(chunks, "Chunk"))
	if err != nil {
		return nil, err
	}

	names, _, citations := e.resolveThemes(descriptors, chunks, false)

	// Every theme of a single document is supported by that document.
	supporting := make(map[string][]string, len(names))
	for _, name := range names {
		supporting[name] = []string{documentID}
	}

	return &models.ThemeResponse{
		Themes:              names,
		SupportingDocuments: supporting,
		DetailedCitations:   citations,
		Metadata: map[string]any{
			"document_id":   documentID,
			"total_results": len(chunks),
		},
	}, nil
}

// ExtractCorpusThemes identifies themes across the whole corpus from a
// bounded sample of chunks. The sample caps are configuration, not
// semantics.
func (e *QueryEngine) ExtractCorpusThemes(ctx context.Context) (*models.ThemeResponse, error) {
	allDocs, err := e.retriever.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(allDocs) == 0 {
		return emptyThemeResponse(map[string]any{"total_results": 0}), nil
	}

	docIDs := make([]string, 0, len(allDocs))
	for id := range allDocs {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)
	if len(docIDs) > e.themeSampleDocs {
		docIDs = docIDs[:e.themeSampleDocs]
	}

	var sample []models.DocumentChunk
	for _, docID := range docIDs {
		raw, err := e.retriever.ChunksByDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if len(raw) > e.themeSampleChunks {
			raw = raw[:e.themeSampleChunks]
		}
		sample = append(sample, scoredToChunks(raw)...)
	}

	if len(sample) == 0 {
		return emptyThemeResponse(map[string]any{"total_results": 0}), nil
	}

	descriptors, err := e.generator.ExtractThemes(ctx, buildThemePreview(sample, "Document"))
	if err != nil {
		return nil, err
	}

	names, supporting, citations := e.resolveThemes(descriptors, sample, true)
	return &models.ThemeResponse{
		Themes:              names,
		SupportingDocuments: supporting,
		DetailedCitations:   citations,
		Metadata: map[string]any{
			"total_documents": len(allDocs),
			"total_results":   len(sample),
		},
	}, nil
}

// resolveThemes maps each descriptor's indices back to candidate chunks,
// silently discarding out-of-range indices, and builds the per-theme
// supporting-document and citation sets.
func (e *QueryEngine) resolveThemes(descriptors []models.ThemeDescriptor, candidates []models.DocumentChunk, dedupeSupporting bool) ([]string, map[string][]string, map[string][]models.Citation) {
	names := make([]string, 0, len(descriptors))
	supporting := make(map[string][]string, len(descriptors))
	citations := make(map[string][]models.Citation, len(descriptors))

	for _, descriptor := range descriptors {
		names = append(names, descriptor.ThemeName)

		var themeChunks []models.DocumentChunk
		var supportingDocs []string
		for _, idx := range descriptor.DocumentIndices {
			if idx < 0 || idx >= len(candidates) {
				continue
			}
			chunk := candidates[idx]
			supportingDocs = append(supportingDocs, metaStringOr(chunk, models.MetaDocID, "Unknown"))
			themeChunks = append(themeChunks, chunk)
		}

		if dedupeSupporting {
			supportingDocs = dedupeStrings(supportingDocs)
		}
		supporting[descriptor.ThemeName] = supportingDocs
		citations[descriptor.ThemeName] = e.citations.CreateBasic(themeChunks)
	}

	return names, supporting, citations
}

// buildThemePreview numbers each candidate and truncates its content so the
// generative collaborator sees a bounded context.
func buildThemePreview(chunks []models.DocumentChunk, label string) string {
	previews := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		content := chunk.Content
		if runes := []rune(content); len(runes) > themePreviewLength {
			content = string(runes[:themePreviewLength])
		}
		previews = append(previews, fmt.Sprintf("%s %d: %s...", label, i+1, content))
	}
	return strings.Join(previews, "\n\n")
}

func scoredToChunks(raw []models.ScoredChunk) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, 0, len(raw))
	for _, r := range raw {
		chunks = append(chunks, models.DocumentChunk{
			Content:         r.Content,
			Metadata:        r.Metadata,
			SimilarityScore: r.Score,
		})
	}
	return chunks
}

func emptyThemeResponse(metadata map[string]any) *models.ThemeResponse {
	return &models.ThemeResponse{
		Themes:              []string{},
		SupportingDocuments: map[string][]string{},
		DetailedCitations:   map[string][]models.Citation{},
		Metadata:            metadata,
	}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ListAllDocuments returns the full document directory. Listing failures
// degrade to an empty listing rather than an error.
func (e *QueryEngine) ListAllDocuments(ctx context.Context) *models.DocumentListResponse {
	records, err := e.lister.ListDocuments(ctx)
	if err != nil {
		logger.Error("Failed to list documents", "error", err)
		return &models.DocumentListResponse{Documents: []models.DocumentRecord{}, Count: 0}
	}

	documents := recordsToSortedList(records)
	return &models.DocumentListResponse{Documents: documents, Count: len(documents)}
}

// TestConnection probes the underlying similarity index.
func (e *QueryEngine) TestConnection(ctx context.Context) bool {
	return e.retriever.HealthCheck(ctx)
}

func recordsToSortedList(records map[string]models.DocumentRecord) []models.DocumentRecord {
	documents := make([]models.DocumentRecord, 0, len(records))
	for id, record := range records {
		record.ID = id
		documents = append(documents, record)
	}
	sort.Slice(documents, func(i, j int) bool { return documents[i].ID < documents[j].ID })
	return documents
}

func truncateForLog(query string) string {
	if len(query) > 100 {
		return query[:100]
	}
	return query
}
