package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sahil/voxpert/internal/service"
)

// ProgressHandler serves processing progress polling endpoints.
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Get handles GET /api/v1/experts/:id/progress. While the run is still
// queued, the reported queue position reflects the live queue row.
func (h *ProgressHandler) Get(c *gin.Context) {
	record, err := h.progress.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get progress: " + err.Error(),
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No progress record for expert",
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// Delete handles DELETE /api/v1/experts/:id/progress. Idempotent: deleting
// an absent record reports deleted=false with status 200.
func (h *ProgressHandler) Delete(c *gin.Context) {
	deleted, err := h.progress.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete progress: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
	})
}
