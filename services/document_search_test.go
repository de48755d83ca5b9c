package services

import (
	"context"
	"fmt"
	"testing"

	"document-query-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchEngine(docs map[string]models.DocumentRecord) *QueryEngine {
	return NewQueryEngine(&fakeRetriever{}, &fakeGenerator{}, &fakeLister{docs: docs}, engineConfig())
}

func record(filename, status, uploaded, author string, pages int) models.DocumentRecord {
	return models.DocumentRecord{
		Filename:        filename,
		Status:          status,
		UploadTimestamp: uploaded,
		Metadata: models.RecordMetadata{
			Title:  filename,
			Author: author,
			Pages:  pages,
		},
	}
}

func TestSearchDocumentsFreeTextMatchesFilenameTitleAuthor(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"d1": record("Invoice-March.pdf", "indexed", "2024-03-01", "smith", 2),
		"d2": record("notes.pdf", "indexed", "2024-03-02", "invoice clerk", 1),
		"d3": record("report.pdf", "indexed", "2024-03-03", "jones", 5),
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(),
		models.DocumentSearchRequest{SearchTerm: "INVOICE"})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, map[string]any{"search_term": "INVOICE"}, resp.FiltersApplied)
}

func TestSearchDocumentsFiltersAreCumulative(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"d1": record("invoice-a.pdf", "indexed", "2024-03-01", "smith", 2),
		"d2": record("invoice-b.pdf", "failed", "2024-03-02", "smith", 1),
		"d3": record("invoice-c.pdf", "indexed", "2024-03-03", "jones", 5),
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{
		SearchTerm:   "invoice",
		AuthorFilter: "smith",
		StatusFilter: "indexed",
	})
	require.NoError(t, err)

	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "invoice-a.pdf", resp.Documents[0].Filename)
}

func TestSearchDocumentsDateRange(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"d1": record("a.pdf", "indexed", "2024-01-15T10:30:00.000000", "", 1),
		"d2": record("b.pdf", "indexed", "2024-02-20", "", 1),
		"d3": record("c.pdf", "indexed", "2024-05-01T08:00:00", "", 1),
		"d4": record("d.pdf", "indexed", "not-a-date", "", 1),
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{
		DateFrom: "2024-01-01",
		DateTo:   "2024-03-01",
	})
	require.NoError(t, err)

	// The unparseable timestamp is excluded while a date filter is active.
	require.Equal(t, 2, resp.TotalCount)
	names := []string{resp.Documents[0].Filename, resp.Documents[1].Filename}
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, names)
}

func TestSearchDocumentsSorting(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"d1": record("Beta.pdf", "indexed", "2024-01-01", "", 3),
		"d2": record("alpha.pdf", "indexed", "2024-03-01", "", 1),
		"d3": record("Gamma.pdf", "indexed", "2024-02-01", "", 2),
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(),
		models.DocumentSearchRequest{SortBy: "filename", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "alpha.pdf", resp.Documents[0].Filename)
	assert.Equal(t, "Beta.pdf", resp.Documents[1].Filename)
	assert.Equal(t, "Gamma.pdf", resp.Documents[2].Filename)

	resp, err = engine.SearchDocuments(context.Background(),
		models.DocumentSearchRequest{SortBy: "pages"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Documents[0].Metadata.Pages)

	// Default sort is newest upload first.
	resp, err = engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alpha.pdf", resp.Documents[0].Filename)

	// Unrecognized sort fields fall back to filename.
	resp, err = engine.SearchDocuments(context.Background(),
		models.DocumentSearchRequest{SortBy: "bogus", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "alpha.pdf", resp.Documents[0].Filename)
}

func TestSearchDocumentsPagination(t *testing.T) {
	docs := make(map[string]models.DocumentRecord, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("d%02d", i)
		filename := fmt.Sprintf("report-%02d.pdf", i)
		if i < 5 {
			filename = fmt.Sprintf("invoice-%02d.pdf", i)
		}
		docs[id] = record(filename, "indexed", fmt.Sprintf("2024-01-%02d", i+1), "", 1)
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{
		SearchTerm: "invoice",
		PageSize:   2,
		SortBy:     "filename",
		SortOrder:  "asc",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.TotalCount)
	assert.Equal(t, 3, resp.PageCount)
	assert.Equal(t, 1, resp.CurrentPage)
	assert.Equal(t, 2, resp.PageSize)
	require.Len(t, resp.Documents, 2)

	// Concatenating all pages reproduces the full filtered list.
	var all []string
	for page := 1; page <= resp.PageCount; page++ {
		pageResp, err := engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{
			SearchTerm: "invoice",
			PageSize:   2,
			PageNumber: page,
			SortBy:     "filename",
			SortOrder:  "asc",
		})
		require.NoError(t, err)
		for _, doc := range pageResp.Documents {
			all = append(all, doc.Filename)
		}
	}
	assert.Equal(t, []string{
		"invoice-00.pdf", "invoice-01.pdf", "invoice-02.pdf", "invoice-03.pdf", "invoice-04.pdf",
	}, all)
}

func TestSearchDocumentsEmptyListingHasPageCountOne(t *testing.T) {
	engine := searchEngine(map[string]models.DocumentRecord{})

	resp, err := engine.SearchDocuments(context.Background(), models.DocumentSearchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.TotalCount)
	assert.Equal(t, 1, resp.PageCount)
	assert.Equal(t, 50, resp.PageSize)
	assert.Empty(t, resp.Documents)
	assert.Empty(t, resp.FiltersApplied)
}

func TestSearchDocumentsPageBeyondEnd(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"d1": record("a.pdf", "indexed", "2024-01-01", "", 1),
	}
	engine := searchEngine(docs)

	resp, err := engine.SearchDocuments(context.Background(),
		models.DocumentSearchRequest{PageSize: 10, PageNumber: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Documents)
	assert.Equal(t, 1, resp.TotalCount)
}
