package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
)

// ProgressSink receives embedding sub-progress. One method, fixed
// signature, so batchers can be tested with a recording fake instead of an
// ad hoc closure threaded through call layers.
type ProgressSink interface {
	OnEmbeddingProgress(batch, totalBatches, chunksDone, totalChunks int)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(batch, totalBatches, chunksDone, totalChunks int)

// OnEmbeddingProgress implements ProgressSink.
func (f ProgressSinkFunc) OnEmbeddingProgress(batch, totalBatches, chunksDone, totalChunks int) {
	f(batch, totalBatches, chunksDone, totalChunks)
}

// ProcessorConfig holds the chunk/embed tunables for one processor.
type ProcessorConfig struct {
	Chunker         ChunkerConfig
	BatchSize       int
	RateLimitDelay  time.Duration
	MaxChunksPerDoc int
}

// DefaultProcessorConfig returns the production pipeline parameters.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Chunker:         DefaultChunkerConfig(),
		BatchSize:       10,
		RateLimitDelay:  100 * time.Millisecond,
		MaxChunksPerDoc: 1000,
	}
}

// ProcessResult reports one document's chunk/embed outcome. On a batch
// failure the result still carries every chunk embedded before the failure,
// so callers see partial progress instead of a rollback to zero.
type ProcessResult struct {
	Chunks             []domain.Chunk
	TotalChunks        int
	OriginalChunks     int
	Truncated          bool
	OriginalWordCount  int
	ProcessedWordCount int
}

// DocumentProcessor turns cleaned text into embedded chunks: clean, chunk,
// cap, then batch the chunks through the embedding API with inter-batch
// throttling and incremental progress callbacks.
type DocumentProcessor struct {
	embedder Embedder
	cfg      ProcessorConfig
	log      *logger.Logger
}

// NewDocumentProcessor creates a new processor.
func NewDocumentProcessor(embedder Embedder, cfg ProcessorConfig, log *logger.Logger) *DocumentProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &DocumentProcessor{
		embedder: embedder,
		cfg:      cfg,
		log:      log,
	}
}

// ProcessDocument chunks and embeds one document. Batches are submitted in
// order; a batch failure aborts the remaining batches and returns the error
// alongside a result holding the chunks that succeeded before it.
// Parameters:
//   - sink: optional embedding sub-progress receiver; nil disables reporting.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, text, fileID, filename, expertID string, sink ProgressSink) (*ProcessResult, error) {
	log := p.log.WithFields(logger.Fields{
		logger.FieldFileID: fileID,
		"filename":         filename,
	})

	cleaned := CleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, fmt.Errorf("no valid text content to process")
	}

	chunks := ChunkText(cleaned, p.cfg.Chunker)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("failed to create text chunks")
	}

	originalChunks := len(chunks)
	truncated := false
	if p.cfg.MaxChunksPerDoc > 0 && len(chunks) > p.cfg.MaxChunksPerDoc {
		// Oversized documents degrade gracefully: drop the tail and report
		// both counts rather than stalling on an unbounded embed run.
		log.WithFields(logger.Fields{
			"original_chunks": originalChunks,
			"chunk_limit":     p.cfg.MaxChunksPerDoc,
		}).Warn("Document truncated to chunk limit")
		chunks = chunks[:p.cfg.MaxChunksPerDoc]
		truncated = true
	}

	result := &ProcessResult{
		TotalChunks:       len(chunks),
		OriginalChunks:    originalChunks,
		Truncated:         truncated,
		OriginalWordCount: WordCount(text),
	}

	totalBatches := (len(chunks)-1)/p.cfg.BatchSize + 1
	createdAt := time.Now().UTC().Format(time.RFC3339)

	for batchStart := 0; batchStart < len(chunks); batchStart += p.cfg.BatchSize {
		batchEnd := batchStart + p.cfg.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batchTexts := chunks[batchStart:batchEnd]
		batchNum := batchStart/p.cfg.BatchSize + 1

		embeddings, err := p.embedder.EmbedBatch(ctx, batchTexts)
		if err != nil {
			// Fail fast: an incomplete document must not be silently
			// indexed with holes. Chunks embedded so far stay in the result.
			log.WithError(err).WithField("batch", batchNum).Error("Embedding batch failed")
			return result, fmt.Errorf("batch %d/%d embedding failed: %w", batchNum, totalBatches, err)
		}

		for i, embedding := range embeddings {
			chunkIndex := batchStart + i
			chunkText := batchTexts[i]
			result.Chunks = append(result.Chunks, domain.Chunk{
				ID:        domain.ChunkID(fileID, chunkIndex),
				Text:      chunkText,
				Embedding: embedding,
				Metadata: domain.ChunkMetadata{
					FileID:      fileID,
					Filename:    filename,
					ChunkIndex:  chunkIndex,
					TotalChunks: len(chunks),
					ExpertID:    expertID,
					WordCount:   WordCount(chunkText),
					Text:        chunkText,
					CreatedAt:   createdAt,
				},
			})
			result.ProcessedWordCount += WordCount(chunkText)
		}

		if sink != nil {
			sink.OnEmbeddingProgress(batchNum, totalBatches, len(result.Chunks), len(chunks))
		}

		if batchEnd < len(chunks) && p.cfg.RateLimitDelay > 0 {
			select {
			case <-time.After(p.cfg.RateLimitDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	log.WithField(logger.FieldCount, len(result.Chunks)).
		Infof("Document processed: %d/%d chunks embedded", len(result.Chunks), originalChunks)

	return result, nil
}
