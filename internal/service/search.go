package service

import (
	"context"
	"fmt"

	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
)

// QueryEmbedder is the single-query slice of the embedding client.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// SearchConfig holds knowledge search parameters.
type SearchConfig struct {
	TopK int
}

// SearchHit is one matching chunk returned to the caller.
type SearchHit struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
}

// SearchService answers similarity queries over an expert's indexed
// knowledge.
type SearchService struct {
	experts  *repository.ExpertRepository
	embedder QueryEmbedder
	vectors  *VectorStoreService
	cfg      SearchConfig
	log      *logger.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(experts *repository.ExpertRepository, embedder QueryEmbedder, vectors *VectorStoreService, cfg SearchConfig, log *logger.Logger) *SearchService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &SearchService{experts: experts, embedder: embedder, vectors: vectors, cfg: cfg, log: log}
}

// Search embeds the query and returns the expert's top matching chunks.
// topK <= 0 falls back to the configured default.
func (s *SearchService) Search(ctx context.Context, expertID, query string, topK int) ([]SearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return nil, fmt.Errorf("load expert: %w", err)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vectors.Search(ctx, expert.AgentID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			Text:       r.Metadata.Text,
			Score:      r.Score,
			FileID:     r.Metadata.FileID,
			Filename:   r.Metadata.Filename,
			ChunkIndex: r.Metadata.ChunkIndex,
		})
	}

	s.log.WithFields(logger.Fields{
		logger.FieldExpertID: expertID,
		"hits":               len(hits),
	}).Debug("Knowledge search served")
	return hits, nil
}

var _ QueryEmbedder = (*EmbeddingService)(nil)
var _ VectorIndex = (*repository.VectorRepository)(nil)
