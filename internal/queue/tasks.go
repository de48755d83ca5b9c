package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"document-query-platform/internal/logger"
	"document-query-platform/models"
	"document-query-platform/services"
)

const TaskDocumentProcess = "document:process"

// DocumentProcessPayload carries everything the worker needs to run the
// ingestion pipeline for one uploaded file.
type DocumentProcessPayload struct {
	DocumentID string                  `json:"document_id"`
	FilePath   string                  `json:"file_path"`
	Metadata   models.DocumentMetadata `json:"metadata"`
}

func NewDocumentProcessTask(docID, filePath string, metadata models.DocumentMetadata) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{
		DocumentID: docID,
		FilePath:   filePath,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentProcess,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued ingestion work.
type TaskProcessor struct {
	processor *services.DocumentProcessor
}

func NewTaskProcessor(processor *services.DocumentProcessor) *TaskProcessor {
	return &TaskProcessor{processor: processor}
}

// ProcessDocument runs the ingestion pipeline for a queued upload and
// removes the staged file once processing finishes.
func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing queued document",
		"document_id", payload.DocumentID, "file", payload.FilePath)

	_, err := p.processor.Process(ctx, payload.DocumentID, payload.FilePath, payload.Metadata)
	if err != nil {
		logger.Error("Queued document processing failed",
			"document_id", payload.DocumentID, "error", err)
		return err
	}

	if err := os.Remove(payload.FilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove staged file", "file", payload.FilePath, "error", err)
	}

	logger.Info("Queued document processed", "document_id", payload.DocumentID)
	return nil
}
