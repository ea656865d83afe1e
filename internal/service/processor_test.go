package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeEmbedder returns deterministic vectors and can be told to fail on a
// specific batch.
type fakeEmbedder struct {
	dims      int
	calls     int
	failBatch int // 1-based batch index to fail on; 0 disables
	failErr   error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failBatch > 0 && f.calls == f.failBatch {
		err := f.failErr
		if err == nil {
			err = errors.New("embedding backend unavailable")
		}
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

// recordingSink captures every progress callback.
type recordingSink struct {
	calls [][4]int
}

func (r *recordingSink) OnEmbeddingProgress(batch, totalBatches, chunksDone, totalChunks int) {
	r.calls = append(r.calls, [4]int{batch, totalBatches, chunksDone, totalChunks})
}

func testProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Chunker:         ChunkerConfig{ChunkSize: 10, ChunkOverlap: 2},
		BatchSize:       3,
		RateLimitDelay:  0,
		MaxChunksPerDoc: 1000,
	}
}

func wordsText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestProcessDocumentOrderAndMetadata(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	p := NewDocumentProcessor(embedder, testProcessorConfig(), nil)

	result, err := p.ProcessDocument(context.Background(), wordsText(100), "file-1", "notes.txt", "expert-1", nil)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if len(result.Chunks) != result.TotalChunks {
		t.Fatalf("got %d chunks, want %d", len(result.Chunks), result.TotalChunks)
	}

	for i, chunk := range result.Chunks {
		if chunk.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, chunk.Metadata.ChunkIndex)
		}
		wantID := fmt.Sprintf("file-1_chunk_%d", i)
		if chunk.ID != wantID {
			t.Errorf("chunk %d ID = %q, want %q", i, chunk.ID, wantID)
		}
		if chunk.Metadata.FileID != "file-1" || chunk.Metadata.Filename != "notes.txt" {
			t.Errorf("chunk %d metadata wrong: %+v", i, chunk.Metadata)
		}
		if chunk.Metadata.ExpertID != "expert-1" {
			t.Errorf("chunk %d expert = %q", i, chunk.Metadata.ExpertID)
		}
		if len(chunk.Embedding) == 0 {
			t.Errorf("chunk %d missing embedding", i)
		}
	}
}

func TestProcessDocumentEmptyText(t *testing.T) {
	p := NewDocumentProcessor(&fakeEmbedder{}, testProcessorConfig(), nil)

	if _, err := p.ProcessDocument(context.Background(), "   ", "f", "f.txt", "e", nil); err == nil {
		t.Error("expected error for blank text")
	}
}

func TestProcessDocumentTruncation(t *testing.T) {
	cfg := testProcessorConfig()
	cfg.MaxChunksPerDoc = 3
	p := NewDocumentProcessor(&fakeEmbedder{}, cfg, nil)

	result, err := p.ProcessDocument(context.Background(), wordsText(200), "f", "f.txt", "e", nil)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if !result.Truncated {
		t.Error("expected truncation")
	}
	if result.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", result.TotalChunks)
	}
	if result.OriginalChunks <= 3 {
		t.Errorf("OriginalChunks = %d, want > 3", result.OriginalChunks)
	}
	if len(result.Chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(result.Chunks))
	}
}

func TestProcessDocumentFailFast(t *testing.T) {
	embedder := &fakeEmbedder{failBatch: 2}
	p := NewDocumentProcessor(embedder, testProcessorConfig(), nil)

	result, err := p.ProcessDocument(context.Background(), wordsText(100), "f", "f.txt", "e", nil)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}

	// First batch succeeded before the failure; its chunks survive.
	if len(result.Chunks) != 3 {
		t.Errorf("got %d partial chunks, want 3", len(result.Chunks))
	}
	// No batches after the failure were attempted.
	if embedder.calls != 2 {
		t.Errorf("embedder called %d times, want 2", embedder.calls)
	}
}

func TestProcessDocumentAPIKeyMissing(t *testing.T) {
	embedder := &fakeEmbedder{failBatch: 1, failErr: ErrAPIKeyMissing}
	p := NewDocumentProcessor(embedder, testProcessorConfig(), nil)

	_, err := p.ProcessDocument(context.Background(), wordsText(50), "f", "f.txt", "e", nil)
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("error should wrap ErrAPIKeyMissing, got %v", err)
	}
}

func TestProcessDocumentProgressCallbacks(t *testing.T) {
	sink := &recordingSink{}
	p := NewDocumentProcessor(&fakeEmbedder{}, testProcessorConfig(), nil)

	result, err := p.ProcessDocument(context.Background(), wordsText(100), "f", "f.txt", "e", sink)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	wantBatches := (result.TotalChunks-1)/3 + 1
	if len(sink.calls) != wantBatches {
		t.Fatalf("got %d callbacks, want %d", len(sink.calls), wantBatches)
	}

	for i, call := range sink.calls {
		if call[0] != i+1 {
			t.Errorf("callback %d: batch = %d, want %d", i, call[0], i+1)
		}
		if call[1] != wantBatches {
			t.Errorf("callback %d: totalBatches = %d, want %d", i, call[1], wantBatches)
		}
		if call[3] != result.TotalChunks {
			t.Errorf("callback %d: totalChunks = %d, want %d", i, call[3], result.TotalChunks)
		}
	}

	// The final callback reports every chunk done.
	last := sink.calls[len(sink.calls)-1]
	if last[2] != result.TotalChunks {
		t.Errorf("final callback chunksDone = %d, want %d", last[2], result.TotalChunks)
	}
}
