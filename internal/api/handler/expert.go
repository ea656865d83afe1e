package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sahil/voxpert/internal/service"
)

// ExpertHandler handles expert CRUD and voice endpoints.
type ExpertHandler struct {
	experts *service.ExpertService
}

// NewExpertHandler creates a new expert handler.
func NewExpertHandler(experts *service.ExpertService) *ExpertHandler {
	return &ExpertHandler{experts: experts}
}

type createExpertRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	VoiceID      string `json:"voice_id"`
}

// Create handles POST /api/v1/experts.
func (h *ExpertHandler) Create(c *gin.Context) {
	var req createExpertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	expert, err := h.experts.Create(c.Request.Context(), service.CreateExpertInput{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		VoiceID:      req.VoiceID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create expert: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, expert)
}

// List handles GET /api/v1/experts.
func (h *ExpertHandler) List(c *gin.Context) {
	experts, err := h.experts.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list experts: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"experts": experts,
		"total":   len(experts),
	})
}

// Get handles GET /api/v1/experts/:id.
func (h *ExpertHandler) Get(c *gin.Context) {
	expert, err := h.experts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get expert: " + err.Error(),
		})
		return
	}
	if expert == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Expert not found",
		})
		return
	}

	c.JSON(http.StatusOK, expert)
}

type updatePromptRequest struct {
	SystemPrompt string `json:"system_prompt" binding:"required"`
}

// UpdatePrompt handles PATCH /api/v1/experts/:id/prompt.
func (h *ExpertHandler) UpdatePrompt(c *gin.Context) {
	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	expert, err := h.experts.UpdatePrompt(c.Request.Context(), c.Param("id"), req.SystemPrompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update expert: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, expert)
}

// Delete handles DELETE /api/v1/experts/:id.
func (h *ExpertHandler) Delete(c *gin.Context) {
	if err := h.experts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete expert: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})
}

// Voices handles GET /api/v1/voices.
func (h *ExpertHandler) Voices(c *gin.Context) {
	voices, err := h.experts.Voices(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrVoiceKeyMissing) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error": "Failed to list voices: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voices": voices,
		"total":  len(voices),
	})
}

// ConversationURL handles GET /api/v1/experts/:id/conversation-url.
func (h *ExpertHandler) ConversationURL(c *gin.Context) {
	url, err := h.experts.SignedConversationURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrVoiceKeyMissing) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error": "Failed to get conversation URL: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signed_url": url,
	})
}
