package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sahil/voxpert/internal/service"
)

// QueueHandler serves queue inspection and control endpoints.
type QueueHandler struct {
	queue  *service.QueueService
	worker *service.QueueWorker
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(queue *service.QueueService, worker *service.QueueWorker) *QueueHandler {
	return &QueueHandler{queue: queue, worker: worker}
}

// Status handles GET /api/v1/queue/status.
func (h *QueueHandler) Status(c *gin.Context) {
	status, err := h.queue.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get queue status: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":  status,
		"worker": h.worker.Status(),
	})
}

// GetTask handles GET /api/v1/queue/tasks/:taskId.
func (h *QueueHandler) GetTask(c *gin.Context) {
	task, err := h.queue.GetTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get task: " + err.Error(),
		})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Cancel handles POST /api/v1/queue/tasks/:taskId/cancel. Only tasks still
// waiting in the queue can be cancelled.
func (h *QueueHandler) Cancel(c *gin.Context) {
	task, err := h.queue.Cancel(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotCancellable) {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "Task is no longer queued",
				"status": task.Status,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel task: " + err.Error(),
		})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return
	}

	c.JSON(http.StatusOK, task)
}
