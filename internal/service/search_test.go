package service

import (
	"context"
	"testing"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/repository"
)

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func TestSearchScopedToExpertNamespace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestExpert(t, db, "e1", "agent-1")
	createTestExpert(t, db, "e2", "agent-2")

	index := newFakeIndex()
	index.UpsertBatch(ctx, "agent-1", []domain.Chunk{
		{ID: "c1", Text: "alpha", Metadata: domain.ChunkMetadata{Text: "alpha", FileID: "f1"}},
	})
	index.UpsertBatch(ctx, "agent-2", []domain.Chunk{
		{ID: "c2", Text: "beta", Metadata: domain.ChunkMetadata{Text: "beta", FileID: "f2"}},
	})

	vectors := NewVectorStoreService(index, DefaultVectorStoreConfig(), nil)
	s := NewSearchService(repository.NewExpertRepository(db), fakeQueryEmbedder{}, vectors, SearchConfig{TopK: 5}, nil)

	hits, err := s.Search(ctx, "e1", "anything", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Text != "alpha" || hits[0].FileID != "f1" {
		t.Errorf("hit leaked across namespaces: %+v", hits[0])
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	db := newTestDB(t)
	vectors := NewVectorStoreService(newFakeIndex(), DefaultVectorStoreConfig(), nil)
	s := NewSearchService(repository.NewExpertRepository(db), fakeQueryEmbedder{}, vectors, SearchConfig{}, nil)

	if _, err := s.Search(context.Background(), "e1", "", 3); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestSearchUnknownExpert(t *testing.T) {
	db := newTestDB(t)
	vectors := NewVectorStoreService(newFakeIndex(), DefaultVectorStoreConfig(), nil)
	s := NewSearchService(repository.NewExpertRepository(db), fakeQueryEmbedder{}, vectors, SearchConfig{}, nil)

	if _, err := s.Search(context.Background(), "ghost", "q", 3); err == nil {
		t.Error("expected error for unknown expert")
	}
}
