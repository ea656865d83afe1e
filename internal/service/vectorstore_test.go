package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/repository"
)

// countingIndex records batch sizes and can fail on a given call.
type countingIndex struct {
	batches  [][]domain.Chunk
	failCall int
}

func (c *countingIndex) UpsertBatch(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	if c.failCall > 0 && len(c.batches)+1 == c.failCall {
		return 0, errors.New("upsert rejected")
	}
	c.batches = append(c.batches, chunks)
	return len(chunks), nil
}

func (c *countingIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]repository.ChunkSearchResult, error) {
	return nil, nil
}

func (c *countingIndex) DeleteByFile(ctx context.Context, namespace, fileID string) error {
	return nil
}

func (c *countingIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	return nil
}

func makeChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:        fmt.Sprintf("f_chunk_%d", i),
			Text:      fmt.Sprintf("chunk %d", i),
			Embedding: []float32{float32(i)},
		}
	}
	return chunks
}

func TestStoreDocumentChunksSubBatches(t *testing.T) {
	index := &countingIndex{}
	s := NewVectorStoreService(index, VectorStoreConfig{UpsertBatchSize: 2}, nil)

	result, err := s.StoreDocumentChunks(context.Background(), "ns", makeChunks(5))
	if err != nil {
		t.Fatalf("StoreDocumentChunks: %v", err)
	}
	if result.UpsertedCount != 5 || result.BatchesProcessed != 3 {
		t.Errorf("result = %+v, want 5 vectors in 3 batches", result)
	}
	if len(index.batches) != 3 {
		t.Fatalf("got %d batches", len(index.batches))
	}
	if len(index.batches[0]) != 2 || len(index.batches[2]) != 1 {
		t.Errorf("batch sizes %d/%d/%d, want 2/2/1",
			len(index.batches[0]), len(index.batches[1]), len(index.batches[2]))
	}
}

func TestStoreDocumentChunksPartialFailure(t *testing.T) {
	index := &countingIndex{failCall: 2}
	s := NewVectorStoreService(index, VectorStoreConfig{UpsertBatchSize: 2}, nil)

	result, err := s.StoreDocumentChunks(context.Background(), "ns", makeChunks(5))
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	// The first batch landed; the failure point is reported.
	if result.UpsertedCount != 2 || result.BatchesProcessed != 1 {
		t.Errorf("result = %+v, want 2 vectors in 1 batch", result)
	}
	if result.TotalRequested != 5 {
		t.Errorf("TotalRequested = %d, want 5", result.TotalRequested)
	}
}

func TestStoreDocumentChunksRequiresNamespace(t *testing.T) {
	s := NewVectorStoreService(&countingIndex{}, VectorStoreConfig{UpsertBatchSize: 2}, nil)

	if _, err := s.StoreDocumentChunks(context.Background(), "", makeChunks(1)); err == nil {
		t.Error("expected error for empty namespace")
	}
}

func TestStoreDocumentChunksEmpty(t *testing.T) {
	index := &countingIndex{}
	s := NewVectorStoreService(index, VectorStoreConfig{UpsertBatchSize: 2}, nil)

	result, err := s.StoreDocumentChunks(context.Background(), "ns", nil)
	if err != nil {
		t.Fatalf("StoreDocumentChunks: %v", err)
	}
	if result.UpsertedCount != 0 || len(index.batches) != 0 {
		t.Errorf("empty input should not touch the index: %+v", result)
	}
}
