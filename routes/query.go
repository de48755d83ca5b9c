package routes

import (
	"net/http"

	"document-query-platform/models"
	"document-query-platform/services"
	"document-query-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupQueryRoutes registers the query, theme and document-directory
// endpoints backed by the query engine.
func SetupQueryRoutes(router *gin.Engine, engine *services.QueryEngine) {
	queries := router.Group("/api/queries")

	queries.POST("/search", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.ProcessQuery(c.Request.Context(), req.Query, req.Filters, req.SelectedDocumentIDs)
		if err != nil {
			utils.RespondWithInternalError(c, "Query processing failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	queries.POST("/enhanced-search", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.ProcessEnhancedQuery(c.Request.Context(), req.Query, req.Filters, req.SelectedDocumentIDs)
		if err != nil {
			utils.RespondWithInternalError(c, "Query processing failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	// Query-scoped theme extraction. The query arrives in the body like a
	// regular search so filters can come along.
	queries.POST("/themes", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.ExtractThemes(c.Request.Context(), req.Query, req.Filters)
		if err != nil {
			utils.RespondWithInternalError(c, "Theme extraction failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	queries.GET("/themes", func(c *gin.Context) {
		resp, err := engine.ExtractCorpusThemes(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Theme extraction failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	queries.GET("/themes/:document_id", func(c *gin.Context) {
		resp, err := engine.ExtractDocumentThemes(c.Request.Context(), c.Param("document_id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Theme extraction failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	queries.POST("/documents/search", func(c *gin.Context) {
		var req models.DocumentSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.SearchDocuments(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithInternalError(c, "Document search failed", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	queries.GET("/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.ListAllDocuments(c.Request.Context()))
	})

	// Validates a selection against the directory so clients can scope
	// follow-up queries to documents that actually exist.
	queries.POST("/documents/select", func(c *gin.Context) {
		var req models.DocumentSelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		listing := engine.ListAllDocuments(c.Request.Context())
		byID := make(map[string]models.DocumentRecord, len(listing.Documents))
		for _, doc := range listing.Documents {
			byID[doc.ID] = doc
		}

		selected := make([]models.DocumentRecord, 0, len(req.DocumentIDs))
		for _, id := range req.DocumentIDs {
			if doc, ok := byID[id]; ok {
				selected = append(selected, doc)
			}
		}

		c.JSON(http.StatusOK, models.DocumentSelectionResponse{
			SelectedDocuments: selected,
			Count:             len(selected),
			Status:            "ok",
		})
	})
}
