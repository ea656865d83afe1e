package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sahil/voxpert/internal/api/middleware"
	"github.com/sahil/voxpert/internal/service"
)

// DocumentHandler handles knowledge-base file endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	ingest    *service.IngestService
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest}
}

// Upload handles POST /api/v1/experts/:id/documents (multipart form,
// field "file").
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing file: " + err.Error(),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to open file: " + err.Error(),
		})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read file: " + err.Error(),
		})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	doc, err := h.documents.Upload(c.Request.Context(), c.Param("id"), fileHeader.Filename, contentType, content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Upload failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// List handles GET /api/v1/experts/:id/documents.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.ListByExpert(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list documents: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// Delete handles DELETE /api/v1/experts/:id/documents/:docId. Removes the
// document's vectors, its stored object, and its database row.
func (h *DocumentHandler) Delete(c *gin.Context) {
	err := h.ingest.DeleteDocumentKnowledge(c.Request.Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete document: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})
}

type processRequest struct {
	SelectedFiles []string `json:"selected_files" binding:"required"`
	Priority      int      `json:"priority"`
}

// Process handles POST /api/v1/experts/:id/process. Queues the selected
// files for background ingestion and returns the task with its queue
// position.
func (h *DocumentHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if len(req.SelectedFiles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "selected_files must not be empty",
		})
		return
	}

	task, record, err := h.ingest.EnqueueProcessing(c.Request.Context(), c.Param("id"), req.SelectedFiles, req.Priority)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to queue processing: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task":     task,
		"progress": record,
	})
}
