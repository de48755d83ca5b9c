package models

// Citation links an answer back to its source passage. Created fresh per
// response, never persisted.
type Citation struct {
	DocID           string    `json:"doc_id"`
	DocumentName    string    `json:"document_name"`
	PageNumber      *int      `json:"page_number,omitempty"`
	ParagraphNumber *int      `json:"paragraph_number,omitempty"`
	ContentSnippet  string    `json:"content_snippet"`
	PositionRect    []float64 `json:"position_rect,omitempty"`
	StartOffset     *int      `json:"start_offset,omitempty"`
	EndOffset       *int      `json:"end_offset,omitempty"`
}

// EmbeddingInfo is the embedding provenance attached to enhanced citations.
type EmbeddingInfo struct {
	VectorID        string  `json:"vector_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Dimension       int     `json:"dimension"`
	ModelName       string  `json:"model_name"`
}

// EnhancedCitation extends Citation with optional embedding provenance.
type EnhancedCitation struct {
	Citation
	EmbeddingInfo *EmbeddingInfo `json:"embedding_info,omitempty"`
}
