package models

// FilterSpec maps filter keys to filter values. Recognized keys are
// "date_range", "relevance_threshold" and "document_ids"; any other key is
// matched against chunk metadata. An empty or nil spec is the identity
// filter.
type FilterSpec map[string]any

// QueryRequest is a natural-language query with optional filters and an
// optional document allow-list.
type QueryRequest struct {
	Query               string     `json:"query" binding:"required"`
	Filters             FilterSpec `json:"filters,omitempty"`
	SelectedDocumentIDs []string   `json:"selected_document_ids,omitempty"`
}

// QueryResponse is the answer to a query with basic citations.
type QueryResponse struct {
	Answers   []string       `json:"answers"`
	Citations []Citation     `json:"citations"`
	Metadata  map[string]any `json:"metadata"`
}

// EnhancedQueryResponse is the answer to a query with enhanced citations.
type EnhancedQueryResponse struct {
	Answers   []string           `json:"answers"`
	Citations []EnhancedCitation `json:"citations"`
	Metadata  map[string]any     `json:"metadata"`
}

// ThemeResponse groups retrieved passages into named themes with per-theme
// supporting documents and citations.
type ThemeResponse struct {
	Themes              []string              `json:"themes"`
	SupportingDocuments map[string][]string   `json:"supporting_documents"`
	DetailedCitations   map[string][]Citation `json:"detailed_citations"`
	Metadata            map[string]any        `json:"metadata"`
}

// DocumentSearchRequest filters, sorts and paginates the document listing.
type DocumentSearchRequest struct {
	SearchTerm        string `json:"search_term,omitempty"`
	FilenameFilter    string `json:"filename_filter,omitempty"`
	ContentTypeFilter string `json:"content_type_filter,omitempty"`
	AuthorFilter      string `json:"author_filter,omitempty"`
	DateFrom          string `json:"date_from,omitempty"`
	DateTo            string `json:"date_to,omitempty"`
	StatusFilter      string `json:"status_filter,omitempty"`
	PageSize          int    `json:"page_size,omitempty"`
	PageNumber        int    `json:"page_number,omitempty"`
	SortBy            string `json:"sort_by,omitempty"`    // filename, upload_timestamp, pages
	SortOrder         string `json:"sort_order,omitempty"` // asc, desc
}

// DocumentSearchResponse is one page of filtered, sorted documents.
type DocumentSearchResponse struct {
	Documents      []DocumentRecord `json:"documents"`
	TotalCount     int              `json:"total_count"`
	PageCount      int              `json:"page_count"`
	CurrentPage    int              `json:"current_page"`
	PageSize       int              `json:"page_size"`
	FiltersApplied map[string]any   `json:"filters_applied"`
}

// DocumentListResponse is the full document directory.
type DocumentListResponse struct {
	Documents []DocumentRecord `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentUploadResponse confirms an upload and reports processing state.
type DocumentUploadResponse struct {
	DocumentID string         `json:"document_id"`
	Status     string         `json:"status"`
	Filename   string         `json:"filename"`
	Metadata   map[string]any `json:"metadata"`
	TaskQueued bool           `json:"task_queued,omitempty"`
}

// DocumentSelectionRequest names documents to scope future queries to.
type DocumentSelectionRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required"`
}

// DocumentSelectionResponse confirms which of the requested documents exist.
type DocumentSelectionResponse struct {
	SelectedDocuments []DocumentRecord `json:"selected_documents"`
	Count             int              `json:"count"`
	Status            string           `json:"status"`
}
