package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/sahil/voxpert/internal/config"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
	"github.com/sahil/voxpert/internal/service"
	"github.com/sahil/voxpert/internal/storage"
)

// Direct ingestion path: reads a local file, stores it for the expert, and
// runs the full pipeline synchronously without the queue. Outcomes match the
// queued path.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "config file path")
		expertID   = flag.String("expert", "", "expert ID to ingest into (required)")
		filePath   = flag.String("file", "", "path of the file to ingest (required)")
	)
	flag.Parse()

	if *expertID == "" || *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
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
		objectStorage = s3
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
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
	documentService := service.NewDocumentService(documentRepo, expertRepo, objectStorage, appLog)

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

	content, err := os.ReadFile(*filePath)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to read input file")
	}

	filename := filepath.Base(*filePath)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "text/plain"
	}

	doc, err := documentService.Upload(ctx, *expertID, filename, contentType, content)
	if err != nil {
		appLog.WithError(err).Fatal("Upload failed")
	}

	if err := ingestService.IngestDocument(ctx, *expertID, doc.ID); err != nil {
		appLog.WithError(err).Fatal("Ingestion failed")
	}

	fmt.Printf("Ingested %s as document %s\n", filename, doc.ID)
}
