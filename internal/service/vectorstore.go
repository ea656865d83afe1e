package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
)

// VectorIndex is the slice of the vector repository the store service needs.
// repository.VectorRepository satisfies it; tests substitute a fake.
type VectorIndex interface {
	UpsertBatch(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error)
	Search(ctx context.Context, namespace string, vector []float32, topK int) ([]repository.ChunkSearchResult, error)
	DeleteByFile(ctx context.Context, namespace, fileID string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// VectorStoreConfig holds upsert batching parameters.
type VectorStoreConfig struct {
	UpsertBatchSize int
	UpsertDelay     time.Duration
}

// DefaultVectorStoreConfig returns production upsert parameters. Sub-batches
// of 100 vectors keep each gRPC request safely under the server's payload
// ceiling at 3072-dimension embeddings.
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		UpsertBatchSize: 100,
		UpsertDelay:     100 * time.Millisecond,
	}
}

// StoreResult reports how much of a store request landed before any failure.
type StoreResult struct {
	UpsertedCount    int
	TotalRequested   int
	BatchesProcessed int
}

// VectorStoreService writes embedded chunks into the vector index in
// bounded sub-batches and serves namespaced similarity queries.
type VectorStoreService struct {
	index VectorIndex
	cfg   VectorStoreConfig
	log   *logger.Logger
}

// NewVectorStoreService creates a new store service.
func NewVectorStoreService(index VectorIndex, cfg VectorStoreConfig, log *logger.Logger) *VectorStoreService {
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &VectorStoreService{index: index, cfg: cfg, log: log}
}

// StoreDocumentChunks upserts chunks under the expert's namespace in
// sub-batches. A failed sub-batch aborts the rest; the result always states
// how many vectors were stored so callers can report partial success.
func (s *VectorStoreService) StoreDocumentChunks(ctx context.Context, namespace string, chunks []domain.Chunk) (*StoreResult, error) {
	result := &StoreResult{TotalRequested: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}
	if namespace == "" {
		return result, fmt.Errorf("namespace is required")
	}

	totalBatches := (len(chunks)-1)/s.cfg.UpsertBatchSize + 1
	for start := 0; start < len(chunks); start += s.cfg.UpsertBatchSize {
		end := start + s.cfg.UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		count, err := s.index.UpsertBatch(ctx, namespace, chunks[start:end])
		result.UpsertedCount += count
		if err != nil {
			s.log.WithError(err).WithFields(logger.Fields{
				"namespace": namespace,
				"batch":     result.BatchesProcessed + 1,
				"stored":    result.UpsertedCount,
				"total":     result.TotalRequested,
			}).Error("Vector upsert batch failed")
			return result, fmt.Errorf("upsert batch %d/%d failed after %d/%d vectors stored: %w",
				result.BatchesProcessed+1, totalBatches, result.UpsertedCount, result.TotalRequested, err)
		}
		result.BatchesProcessed++

		if end < len(chunks) && s.cfg.UpsertDelay > 0 {
			select {
			case <-time.After(s.cfg.UpsertDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	s.log.WithFields(logger.Fields{
		"namespace": namespace,
		"vectors":   result.UpsertedCount,
		"batches":   result.BatchesProcessed,
	}).Info("Document chunks stored")
	return result, nil
}

// Search runs a namespaced similarity query over stored chunks.
func (s *VectorStoreService) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]repository.ChunkSearchResult, error) {
	return s.index.Search(ctx, namespace, vector, topK)
}

// DeleteDocument removes every vector belonging to one file in a namespace.
func (s *VectorStoreService) DeleteDocument(ctx context.Context, namespace, fileID string) error {
	return s.index.DeleteByFile(ctx, namespace, fileID)
}

// DeleteExpertKnowledge drops an expert's entire namespace.
func (s *VectorStoreService) DeleteExpertKnowledge(ctx context.Context, namespace string) error {
	return s.index.DeleteNamespace(ctx, namespace)
}
