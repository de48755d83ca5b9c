package models

// Document processing status constants
const (
	StatusPending        = "pending"
	StatusProcessing     = "processing"
	StatusProcessed      = "processed"
	StatusIndexed        = "indexed"
	StatusIndexingFailed = "indexing_failed"
	StatusFailed         = "failed"
)

// TextPosition locates a paragraph on its source page.
// Rect is [x0, y0, x1, y1] in page coordinates when available.
type TextPosition struct {
	Page           int       `json:"page" bson:"page"`
	ParagraphIndex int       `json:"paragraph_index" bson:"paragraph_index"`
	Rect           []float64 `json:"rect,omitempty" bson:"rect,omitempty"`
	IsOCR          bool      `json:"is_ocr,omitempty" bson:"is_ocr,omitempty"`
}

// DocumentParagraph is a single extracted paragraph with its position.
type DocumentParagraph struct {
	Text     string       `json:"text" bson:"text"`
	Position TextPosition `json:"position" bson:"position"`
}

// DocumentPage is one page of an extracted document.
type DocumentPage struct {
	PageNumber int                 `json:"page_number" bson:"page_number"`
	Paragraphs []DocumentParagraph `json:"paragraphs" bson:"paragraphs"`
	FullText   string              `json:"full_text" bson:"full_text"`
}

// DocumentMetadata describes an uploaded file and its processing state.
type DocumentMetadata struct {
	Filename         string `json:"filename" bson:"filename"`
	ContentType      string `json:"content_type" bson:"content_type"`
	FileSize         int64  `json:"file_size" bson:"file_size"`
	UploadDate       string `json:"upload_date" bson:"upload_date"`
	Author           string `json:"author,omitempty" bson:"author,omitempty"`
	DocumentDate     string `json:"document_date,omitempty" bson:"document_date,omitempty"`
	DocumentType     string `json:"document_type,omitempty" bson:"document_type,omitempty"`
	ProcessingStatus string `json:"processing_status" bson:"processing_status"`
	SegmentCount     int    `json:"segment_count" bson:"segment_count"`
	PageCount        int    `json:"page_count" bson:"page_count"`
}

// ProcessedDocument is a fully extracted document ready for storage and indexing.
type ProcessedDocument struct {
	ID       string           `json:"id" bson:"_id"`
	FullText string           `json:"full_text" bson:"-"`
	Pages    []DocumentPage   `json:"pages" bson:"pages"`
	Metadata DocumentMetadata `json:"metadata" bson:"metadata"`
}

// RecordMetadata is the compact metadata carried in document listings.
type RecordMetadata struct {
	Title    string `json:"title" bson:"title"`
	Author   string `json:"author,omitempty" bson:"author,omitempty"`
	Pages    int    `json:"pages,omitempty" bson:"pages,omitempty"`
	FileType string `json:"file_type,omitempty" bson:"file_type,omitempty"`
}

// DocumentRecord is the listing shape shared by the vector store and the
// document registry: one entry per document, keyed by document ID.
type DocumentRecord struct {
	ID              string         `json:"id" bson:"_id"`
	Filename        string         `json:"filename" bson:"filename"`
	Status          string         `json:"status" bson:"status"`
	UploadTimestamp string         `json:"upload_timestamp" bson:"upload_timestamp"`
	Metadata        RecordMetadata `json:"metadata" bson:"metadata"`
}

// Record derives the listing entry for a processed document.
func (d *ProcessedDocument) Record() DocumentRecord {
	return DocumentRecord{
		ID:              d.ID,
		Filename:        d.Metadata.Filename,
		Status:          d.Metadata.ProcessingStatus,
		UploadTimestamp: d.Metadata.UploadDate,
		Metadata: RecordMetadata{
			Title:    d.Metadata.Filename,
			Author:   d.Metadata.Author,
			Pages:    d.Metadata.PageCount,
			FileType: d.Metadata.DocumentType,
		},
	}
}
