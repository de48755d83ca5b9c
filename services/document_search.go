package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"document-query-platform/internal/logger"
	"document-query-platform/models"
)

const (
	defaultPageSize   = 50
	defaultPageNumber = 1
)

// uploadTimestampLayouts are tried in order when a date range filter is
// active. First successful parse wins.
var uploadTimestampLayouts = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02",
	"2006-01-02T15:04:05",
}

// SearchDocuments filters, sorts and paginates the full document listing.
// This is a pure transformation over the directory; no retrieval happens
// here.
func (e *QueryEngine) SearchDocuments(ctx context.Context, req models.DocumentSearchRequest) (*models.DocumentSearchResponse, error) {
	records, err := e.lister.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	documents := recordsToSortedList(records)
	documents = applySearchFilters(documents, req)
	documents = applyDateRange(documents, req.DateFrom, req.DateTo)
	sortDocuments(documents, req.SortBy, req.SortOrder)

	totalCount := len(documents)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageNumber := req.PageNumber
	if pageNumber <= 0 {
		pageNumber = defaultPageNumber
	}

	pageCount := int(math.Ceil(float64(totalCount) / float64(pageSize)))
	if pageCount < 1 {
		pageCount = 1
	}

	start := (pageNumber - 1) * pageSize
	if start > totalCount {
		start = totalCount
	}
	end := start + pageSize
	if end > totalCount {
		end = totalCount
	}

	logger.Info("Document search completed",
		"total_count", totalCount, "page", pageNumber, "page_count", pageCount)

	return &models.DocumentSearchResponse{
		Documents:      documents[start:end],
		TotalCount:     totalCount,
		PageCount:      pageCount,
		CurrentPage:    pageNumber,
		PageSize:       pageSize,
		FiltersApplied: appliedFilters(req),
	}, nil
}

// applySearchFilters runs the substring filters in a fixed order, each an
// independent case-insensitive test AND-ed cumulatively.
func applySearchFilters(documents []models.DocumentRecord, req models.DocumentSearchRequest) []models.DocumentRecord {
	if term := strings.ToLower(req.SearchTerm); term != "" {
		documents = keepMatching(documents, func(d models.DocumentRecord) bool {
			return containsFold(d.Filename, term) ||
				containsFold(d.Metadata.Title, term) ||
				containsFold(d.Metadata.Author, term)
		})
	}
	if f := strings.ToLower(req.FilenameFilter); f != "" {
		documents = keepMatching(documents, func(d models.DocumentRecord) bool {
			return containsFold(d.Filename, f)
		})
	}
	if f := strings.ToLower(req.ContentTypeFilter); f != "" {
		documents = keepMatching(documents, func(d models.DocumentRecord) bool {
			return containsFold(d.Metadata.FileType, f)
		})
	}
	if f := strings.ToLower(req.AuthorFilter); f != "" {
		documents = keepMatching(documents, func(d models.DocumentRecord) bool {
			return containsFold(d.Metadata.Author, f)
		})
	}
	if f := strings.ToLower(req.StatusFilter); f != "" {
		documents = keepMatching(documents, func(d models.DocumentRecord) bool {
			return containsFold(d.Status, f)
		})
	}
	return documents
}

// applyDateRange keeps documents whose upload timestamp falls within the
// inclusive bounds. Unparseable timestamps are excluded entirely while a
// date filter is active.
func applyDateRange(documents []models.DocumentRecord, dateFrom, dateTo string) []models.DocumentRecord {
	if dateFrom == "" && dateTo == "" {
		return documents
	}

	var from, to time.Time
	var haveFrom, haveTo bool
	if dateFrom != "" {
		if parsed, ok := parseUploadTimestamp(dateFrom); ok {
			from, haveFrom = parsed, true
		}
	}
	if dateTo != "" {
		if parsed, ok := parseUploadTimestamp(dateTo); ok {
			to, haveTo = parsed, true
		}
	}

	return keepMatching(documents, func(d models.DocumentRecord) bool {
		uploaded, ok := parseUploadTimestamp(d.UploadTimestamp)
		if !ok {
			return false
		}
		if haveFrom && uploaded.Before(from) {
			return false
		}
		if haveTo && uploaded.After(to) {
			return false
		}
		return true
	})
}

func parseUploadTimestamp(value string) (time.Time, bool) {
	for _, layout := range uploadTimestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func sortDocuments(documents []models.DocumentRecord, sortBy, sortOrder string) {
	ascending := strings.EqualFold(sortOrder, "asc")

	var less func(a, b models.DocumentRecord) bool
	switch sortBy {
	case "upload_timestamp", "":
		less = func(a, b models.DocumentRecord) bool {
			return strings.ToLower(a.UploadTimestamp) < strings.ToLower(b.UploadTimestamp)
		}
	case "pages":
		less = func(a, b models.DocumentRecord) bool {
			return a.Metadata.Pages < b.Metadata.Pages
		}
	default:
		// Unrecognized sort fields fall back to filename.
		fallthrough
	case "filename":
		less = func(a, b models.DocumentRecord) bool {
			return strings.ToLower(a.Filename) < strings.ToLower(b.Filename)
		}
	}

	sort.SliceStable(documents, func(i, j int) bool {
		if ascending {
			return less(documents[i], documents[j])
		}
		return less(documents[j], documents[i])
	})
}

// appliedFilters records which filters actually participated in this
// search, omitting empty ones.
func appliedFilters(req models.DocumentSearchRequest) map[string]any {
	applied := make(map[string]any)
	set := func(key, value string) {
		if value != "" {
			applied[key] = value
		}
	}
	set("search_term", req.SearchTerm)
	set("filename", req.FilenameFilter)
	set("content_type", req.ContentTypeFilter)
	set("author", req.AuthorFilter)
	set("status", req.StatusFilter)
	set("date_from", req.DateFrom)
	set("date_to", req.DateTo)
	return applied
}

func keepMatching(documents []models.DocumentRecord, match func(models.DocumentRecord) bool) []models.DocumentRecord {
	kept := make([]models.DocumentRecord, 0, len(documents))
	for _, d := range documents {
		if match(d) {
			kept = append(kept, d)
		}
	}
	return kept
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}
