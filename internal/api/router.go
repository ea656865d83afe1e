package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sahil/voxpert/internal/api/handler"
	"github.com/sahil/voxpert/internal/api/middleware"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/service"
)

// Services bundles everything the router needs.
type Services struct {
	Experts   *service.ExpertService
	Documents *service.DocumentService
	Ingest    *service.IngestService
	Progress  *service.ProgressService
	Queue     *service.QueueService
	Worker    *service.QueueWorker
	Search    *service.SearchService
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(svc Services, log *logger.Logger, mode string, cors middleware.CORSConfig) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()
	expertHandler := handler.NewExpertHandler(svc.Experts)
	documentHandler := handler.NewDocumentHandler(svc.Documents, svc.Ingest)
	progressHandler := handler.NewProgressHandler(svc.Progress)
	queueHandler := handler.NewQueueHandler(svc.Queue, svc.Worker)
	searchHandler := handler.NewSearchHandler(svc.Search)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Experts
		v1.POST("/experts", expertHandler.Create)
		v1.GET("/experts", expertHandler.List)
		v1.GET("/experts/:id", expertHandler.Get)
		v1.PATCH("/experts/:id/prompt", expertHandler.UpdatePrompt)
		v1.DELETE("/experts/:id", expertHandler.Delete)
		v1.GET("/experts/:id/conversation-url", expertHandler.ConversationURL)
		v1.GET("/voices", expertHandler.Voices)

		// Documents and ingestion
		v1.POST("/experts/:id/documents", documentHandler.Upload)
		v1.GET("/experts/:id/documents", documentHandler.List)
		v1.DELETE("/experts/:id/documents/:docId", documentHandler.Delete)
		v1.POST("/experts/:id/process", documentHandler.Process)

		// Progress polling
		v1.GET("/experts/:id/progress", progressHandler.Get)
		v1.DELETE("/experts/:id/progress", progressHandler.Delete)

		// Queue
		v1.GET("/queue/status", queueHandler.Status)
		v1.GET("/queue/tasks/:taskId", queueHandler.GetTask)
		v1.POST("/queue/tasks/:taskId/cancel", queueHandler.Cancel)

		// Knowledge search
		v1.POST("/experts/:id/search", searchHandler.Search)
	}

	return r
}
