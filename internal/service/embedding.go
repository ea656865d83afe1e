package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrAPIKeyMissing reports that the embedding provider credential is not
// configured. Distinct from transient API failures: retrying cannot fix a
// missing key, and the worker treats it as a non-fatal outcome for the
// enclosing task.
var ErrAPIKeyMissing = errors.New("embedding API key not configured")

// Embedder produces fixed-dimension embedding vectors, one per input text,
// order-preserving. Implemented by EmbeddingService; tests substitute fakes.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EmbeddingService calls the OpenAI embeddings API.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
	hasKey     bool
}

// EmbeddingServiceConfig holds configuration for the embedding service.
type EmbeddingServiceConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingService creates a new embedding service. A missing API key is
// allowed at construction; calls then fail with ErrAPIKeyMissing so the
// caller can classify the failure. Every request carries a deadline so a
// stalled provider call cannot hang the single-worker pipeline.
func NewEmbeddingService(cfg *EmbeddingServiceConfig) *EmbeddingService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		hasKey:     cfg.APIKey != "",
	}
}

// Model returns the embedding model name being used.
func (s *EmbeddingService) Model() string {
	return s.model
}

// Dimensions returns the embedding vector dimension.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// OpenAI API request/response structures
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// EmbedBatch generates embeddings for multiple texts in one API call.
// The result preserves input order: result[i] embeds texts[i].
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if !s.hasKey {
		return nil, ErrAPIKeyMissing
	}

	req := embeddingRequest{
		Model: s.model,
		Input: texts,
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/embeddings")

	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("embeddings API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embeddings API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure positional correspondence
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single search query.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}
