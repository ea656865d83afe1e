package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahil/voxpert/internal/api"
	"github.com/sahil/voxpert/internal/api/middleware"
	"github.com/sahil/voxpert/internal/config"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
	"github.com/sahil/voxpert/internal/service"
	"github.com/sahil/voxpert/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLog)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize database")
	}
	if err := repository.Migrate(db); err != nil {
		appLog.WithError(err).Fatal("Failed to migrate database")
	}

	expertRepo := repository.NewExpertRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	vectorRepo, err := repository.NewVectorRepository(&repository.VectorConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize vector repository")
	}
	defer vectorRepo.Close()

	ctx := context.Background()
	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to ensure vector collection")
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Endpoint != "" || cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3Storage(&storage.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
		if err != nil {
			appLog.WithError(err).Fatal("Failed to initialize object storage")
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			appLog.WithError(err).Fatal("Failed to ensure storage bucket")
		}
		objectStorage = s3
	} else {
		appLog.Warn("Object storage not configured, document content stays in the database")
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	voiceService := service.NewVoiceService(&service.VoiceServiceConfig{
		APIKey:  cfg.Voice.APIKey,
		BaseURL: cfg.Voice.BaseURL,
		Timeout: cfg.Voice.Timeout,
	})

	processor := service.NewDocumentProcessor(embeddingService, service.ProcessorConfig{
		Chunker: service.ChunkerConfig{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
		},
		BatchSize:       cfg.Ingest.BatchSize,
		RateLimitDelay:  cfg.Ingest.RateLimitDelay,
		MaxChunksPerDoc: cfg.Ingest.MaxChunksPerDoc,
	}, appLog)

	vectorStore := service.NewVectorStoreService(vectorRepo, service.VectorStoreConfig{
		UpsertBatchSize: cfg.Ingest.UpsertBatchSize,
		UpsertDelay:     cfg.Ingest.UpsertDelay,
	}, appLog)

	progressService := service.NewProgressService(progressRepo, taskRepo, appLog)
	queueService := service.NewQueueService(taskRepo, service.QueueConfig{
		MaxRetries: cfg.Queue.MaxRetries,
	}, appLog)

	ingestService := service.NewIngestService(
		expertRepo,
		documentRepo,
		objectStorage,
		service.NewPlainTextExtractor(),
		processor,
		vectorStore,
		progressService,
		queueService,
		appLog,
	)

	expertService := service.NewExpertService(expertRepo, documentRepo, voiceService, vectorStore, appLog)
	documentService := service.NewDocumentService(documentRepo, expertRepo, objectStorage, appLog)
	searchService := service.NewSearchService(expertRepo, embeddingService, vectorStore, service.SearchConfig{
		TopK: cfg.Search.TopK,
	}, appLog)

	worker := service.NewQueueWorker(queueService, ingestService, service.WorkerConfig{
		PollInterval: cfg.Queue.PollInterval,
	}, appLog)
	worker.Start(ctx)
	defer worker.Stop()

	router := api.SetupRouter(api.Services{
		Experts:   expertService,
		Documents: documentService,
		Ingest:    ingestService,
		Progress:  progressService,
		Queue:     queueService,
		Worker:    worker,
		Search:    searchService,
	}, appLog, cfg.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLog.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Server shutdown failed")
	}
}
