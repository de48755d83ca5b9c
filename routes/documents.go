package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/internal/queue"
	"document-query-platform/internal/store"
	"document-query-platform/models"
	"document-query-platform/services"
	"document-query-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SetupDocumentRoutes registers the ingestion endpoints: upload, fetch,
// delete, re-index, health.
func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	processor *services.DocumentProcessor,
	registry *store.DocumentStore,
	engine *services.QueryEngine,
	asynqClient *asynq.Client,
) {
	documents := router.Group("/api/documents")

	documents.POST("/upload", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "File is required", gin.H{"error": err.Error()})
			return
		}

		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File too large",
				gin.H{"max_file_size": cfg.MaxFileSize, "file_size": fileHeader.Size})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if !isAllowedType(contentType, cfg.AllowedTypes) {
			utils.RespondWithBadRequest(c, "Unsupported file type",
				gin.H{"content_type": contentType, "allowed_types": cfg.AllowedTypes})
			return
		}

		docID := uuid.NewString()
		if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage", gin.H{"error": err.Error()})
			return
		}
		stagedPath := filepath.Join(cfg.FileStorageDir, docID+filepath.Ext(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, stagedPath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store upload", gin.H{"error": err.Error()})
			return
		}

		metadata := services.ExtractMetadata(fileHeader.Filename, contentType, fileHeader.Size)

		// Small files are processed inline so the caller gets a final
		// status. Larger ones go to the worker queue.
		if asynqClient == nil || fileHeader.Size <= cfg.SyncProcessingLimit {
			doc, err := processor.Process(c.Request.Context(), docID, stagedPath, metadata)
			if removeErr := os.Remove(stagedPath); removeErr != nil && !os.IsNotExist(removeErr) {
				logger.Warn("Failed to remove staged file", "file", stagedPath, "error", removeErr)
			}
			if err != nil {
				utils.RespondWithInternalError(c, "Document processing failed", gin.H{"error": err.Error()})
				return
			}

			c.JSON(http.StatusOK, models.DocumentUploadResponse{
				DocumentID: docID,
				Status:     doc.Metadata.ProcessingStatus,
				Filename:   fileHeader.Filename,
				Metadata: map[string]any{
					"pages":         doc.Metadata.PageCount,
					"segment_count": doc.Metadata.SegmentCount,
					"upload_date":   doc.Metadata.UploadDate,
				},
			})
			return
		}

		task, err := queue.NewDocumentProcessTask(docID, stagedPath, metadata)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", gin.H{"error": err.Error()})
			return
		}
		if _, err := asynqClient.EnqueueContext(c.Request.Context(), task); err != nil {
			utils.RespondWithInternalError(c, "Failed to queue document", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, models.DocumentUploadResponse{
			DocumentID: docID,
			Status:     models.StatusPending,
			Filename:   fileHeader.Filename,
			Metadata:   map[string]any{"upload_date": metadata.UploadDate},
			TaskQueued: true,
		})
	})

	documents.GET("/:document_id", func(c *gin.Context) {
		doc, err := registry.GetDocument(c.Request.Context(), c.Param("document_id"))
		if err == store.ErrNotFound {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load document", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	documents.DELETE("/:document_id", func(c *gin.Context) {
		if err := processor.Delete(c.Request.Context(), c.Param("document_id")); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "document_id": c.Param("document_id")})
	})

	documents.POST("/:document_id/reindex", func(c *gin.Context) {
		docID := c.Param("document_id")
		if err := processor.RetryIndexing(c.Request.Context(), docID); err != nil {
			utils.RespondWithInternalError(c, "Re-indexing failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.StatusIndexed, "document_id": docID})
	})

	documents.GET("/health", func(c *gin.Context) {
		healthy := engine.TestConnection(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"vector_store": healthy,
			"timestamp":    time.Now().UTC(),
		})
	})
}

func isAllowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if contentType == t {
			return true
		}
	}
	return false
}
