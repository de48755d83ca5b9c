package services

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"document-query-platform/models"
)

// uploadDateLayout is the canonical timestamp format stored on every
// document record.
const uploadDateLayout = "2006-01-02T15:04:05.000000"

var filenameDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ExtractMetadata derives document metadata from the upload itself.
// Filenames of the form "author_topic_rest.pdf" contribute an author, and
// an embedded ISO date becomes the document date.
func ExtractMetadata(filename, contentType string, fileSize int64) models.DocumentMetadata {
	metadata := models.DocumentMetadata{
		Filename:         filename,
		ContentType:      contentType,
		FileSize:         fileSize,
		UploadDate:       time.Now().UTC().Format(uploadDateLayout),
		DocumentType:     documentTypeFromFilename(filename, contentType),
		ProcessingStatus: models.StatusPending,
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if parts := strings.Split(base, "_"); len(parts) >= 3 {
		metadata.Author = parts[0]
	}
	if date := filenameDatePattern.FindString(base); date != "" {
		metadata.DocumentDate = date
	}

	return metadata
}

func documentTypeFromFilename(filename, contentType string) string {
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext != "" {
		return ext
	}
	if idx := strings.Index(contentType, "/"); idx >= 0 {
		return contentType[idx+1:]
	}
	return "unknown"
}
