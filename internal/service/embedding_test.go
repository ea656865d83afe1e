package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEmbedBatchMissingKey(t *testing.T) {
	s := NewEmbeddingService(&EmbeddingServiceConfig{
		Model:      "test-model",
		BaseURL:    "http://localhost:0",
		Dimensions: 4,
	})

	if _, err := s.EmbedBatch(context.Background(), []string{"x"}); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestNewEmbeddingServiceRequestTimeout(t *testing.T) {
	// A stalled provider call must not hang the single worker, so the
	// client always carries a request deadline.
	s := NewEmbeddingService(&EmbeddingServiceConfig{
		Model:   "m",
		APIKey:  "k",
		BaseURL: "http://localhost:0",
		Timeout: 5 * time.Second,
	})
	if got := s.client.GetClient().Timeout; got != 5*time.Second {
		t.Errorf("client timeout = %v, want 5s", got)
	}

	s = NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: "http://localhost:0"})
	if got := s.client.GetClient().Timeout; got != 60*time.Second {
		t.Errorf("default client timeout = %v, want 60s", got)
	}
}

func TestNewVoiceServiceRequestTimeout(t *testing.T) {
	v := NewVoiceService(&VoiceServiceConfig{BaseURL: "http://localhost:0", Timeout: 10 * time.Second})
	if got := v.client.GetClient().Timeout; got != 10*time.Second {
		t.Errorf("client timeout = %v, want 10s", got)
	}

	v = NewVoiceService(&VoiceServiceConfig{BaseURL: "http://localhost:0"})
	if got := v.client.GetClient().Timeout; got != 30*time.Second {
		t.Errorf("default client timeout = %v, want 30s", got)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	s := NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: "http://localhost:0"})

	out, err := s.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	// Server returns data out of order; the client must reorder by index.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(i)}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	defer srv.Close()

	s := NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: srv.URL})

	out, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(out))
	}
	for i, emb := range out {
		if len(emb) != 1 || emb[0] != float32(i) {
			t.Errorf("embedding %d = %v, out of order", i, emb)
		}
	}
}

func TestEmbedBatchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	s := NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: srv.URL})

	if _, err := s.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error from API failure")
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{1}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	s := NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: srv.URL})

	if _, err := s.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error on embedding count mismatch")
	}
}

func TestEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.5, 0.25}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	s := NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", APIKey: "k", BaseURL: srv.URL})

	vec, err := s.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("unexpected vector %v", vec)
	}
}
