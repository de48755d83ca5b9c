package models

// Metadata keys attached to every indexed chunk.
const (
	MetaDocID           = "doc_id"
	MetaFilename        = "filename"
	MetaPageNumber      = "page_number"
	MetaParagraphNumber = "paragraph_number"
	MetaPosition        = "position"
	MetaAuthor          = "author"
	MetaDocumentDate    = "document_date"
	MetaDocumentType    = "document_type"
)

// DocumentChunk is a unit of retrievable text with metadata and a similarity
// score. The score is 0 until the chunk has been scored by a search.
type DocumentChunk struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
}

// MetaString returns a string metadata value, reporting whether it was
// present and actually a string.
func (c DocumentChunk) MetaString(key string) (string, bool) {
	v, ok := c.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DocID returns the owning document ID, or the empty string when absent.
func (c DocumentChunk) DocID() string {
	s, _ := c.MetaString(MetaDocID)
	return s
}

// PositionRect returns the position rectangle from the chunk's nested
// position metadata, or nil when absent.
func (c DocumentChunk) PositionRect() []float64 {
	pos, ok := c.Metadata[MetaPosition].(map[string]any)
	if !ok {
		return nil
	}
	switch rect := pos["rect"].(type) {
	case []float64:
		return rect
	case []any:
		out := make([]float64, 0, len(rect))
		for _, v := range rect {
			f, ok := v.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// RetrievedKind tags the two shapes a vector index can hand back.
type RetrievedKind int

const (
	// RetrievedRaw is a raw index payload: content, decoded metadata and the
	// similarity score straight from the index.
	RetrievedRaw RetrievedKind = iota + 1
	// RetrievedChunk is an already-normalized DocumentChunk.
	RetrievedChunk
)

// RawSearchHit is the raw payload form of a search result.
type RawSearchHit struct {
	VectorID string         `json:"vector_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Retrieved is a tagged union of the two result shapes. It is resolved once
// at the retriever boundary; downstream code only sees DocumentChunks.
type Retrieved struct {
	Kind  RetrievedKind
	Raw   *RawSearchHit
	Chunk *DocumentChunk
}

// NewRetrievedRaw wraps a raw index payload.
func NewRetrievedRaw(hit *RawSearchHit) Retrieved {
	return Retrieved{Kind: RetrievedRaw, Raw: hit}
}

// NewRetrievedChunk wraps an already-normalized chunk.
func NewRetrievedChunk(chunk *DocumentChunk) Retrieved {
	return Retrieved{Kind: RetrievedChunk, Chunk: chunk}
}

// ScoredChunk is the shape returned by per-document chunk lookups.
type ScoredChunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// ThemeDescriptor is one theme identified by the generative collaborator:
// a name plus zero-based indices into the candidate chunk set it was shown.
type ThemeDescriptor struct {
	ThemeName       string `json:"theme_name"`
	DocumentIndices []int  `json:"document_indices"`
}
