package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
	"github.com/sahil/voxpert/internal/storage"
)

// FileFailure records one document that could not be ingested.
type FileFailure struct {
	FileID string `json:"file_id"`
	Error  string `json:"error"`
}

// ProcessFilesResult summarizes one multi-file ingestion run.
type ProcessFilesResult struct {
	ProcessedCount int           `json:"processed_count"`
	TotalFiles     int           `json:"total_files"`
	FailedFiles    []FileFailure `json:"failed_files,omitempty"`
	SuccessRate    float64       `json:"success_rate"`
	AgentID        string        `json:"agent_id"`
}

// IngestService drives the extract-chunk-embed-store pipeline over an
// expert's documents. Per-document failures are contained: one bad file
// never aborts the rest of the run.
type IngestService struct {
	experts   *repository.ExpertRepository
	documents *repository.DocumentRepository
	objects   storage.ObjectStorage
	extractor TextExtractor
	processor *DocumentProcessor
	vectors   *VectorStoreService
	progress  *ProgressService
	queue     *QueueService
	log       *logger.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	experts *repository.ExpertRepository,
	documents *repository.DocumentRepository,
	objects storage.ObjectStorage,
	extractor TextExtractor,
	processor *DocumentProcessor,
	vectors *VectorStoreService,
	progress *ProgressService,
	queue *QueueService,
	log *logger.Logger,
) *IngestService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		experts:   experts,
		documents: documents,
		objects:   objects,
		extractor: extractor,
		processor: processor,
		vectors:   vectors,
		progress:  progress,
		queue:     queue,
		log:       log,
	}
}

// EnqueueProcessing creates a queued task for the expert's selected files
// and a matching progress record in the queued stage, so clients can poll
// before the worker picks the task up.
func (s *IngestService) EnqueueProcessing(ctx context.Context, expertID string, selectedFiles []string, priority int) (*domain.ProcessingTask, *domain.ProcessingProgress, error) {
	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return nil, nil, fmt.Errorf("load expert: %w", err)
	}

	task, err := s.queue.Enqueue(ctx, expertID, expert.AgentID, domain.TaskTypeFileProcessing, priority, domain.JSONMap{
		"selected_files": selectedFiles,
	})
	if err != nil {
		return nil, nil, err
	}

	record, err := s.progress.Create(ctx, expertID, expert.AgentID, len(selectedFiles), task.ID, task.QueuePosition)
	if errors.Is(err, ErrProgressExists) {
		// A concurrent enqueue raced us; the task stands, the existing
		// record keeps tracking.
		record, err = s.progress.Get(ctx, expertID)
	}
	if err != nil {
		return task, nil, err
	}
	return task, record, nil
}

// ProcessExpertFiles runs the full pipeline over the selected files. The
// returned result reports per-file outcomes; the error is non-nil only for
// run-level failures, not for individual bad files. A run where every file
// fails still returns a result, with the progress record marked failed.
func (s *IngestService) ProcessExpertFiles(ctx context.Context, expertID, agentID string, selectedFiles []string) (*ProcessFilesResult, error) {
	result := &ProcessFilesResult{TotalFiles: len(selectedFiles), AgentID: agentID}
	if len(selectedFiles) == 0 {
		result.SuccessRate = 0
		return result, nil
	}

	log := s.log.WithFields(logger.Fields{
		logger.FieldExpertID: expertID,
		logger.FieldAgentID:  agentID,
	})
	log.WithField("total_files", len(selectedFiles)).Info("Starting file processing")

	if err := s.ensureProgress(ctx, expertID, agentID, len(selectedFiles)); err != nil {
		return nil, err
	}

	for fileIndex, fileID := range selectedFiles {
		s.progress.Update(ctx, expertID, map[string]interface{}{
			"status":             domain.ProgressStatusInProgress,
			"stage":              domain.StageFileProcessing,
			"current_file_index": fileIndex,
			"current_file":       fileID,
		})

		if err := s.processSingleFile(ctx, expertID, agentID, fileID, fileIndex, len(selectedFiles)); err != nil {
			log.WithError(err).WithField(logger.FieldFileID, fileID).Error("File processing failed")
			result.FailedFiles = append(result.FailedFiles, FileFailure{FileID: fileID, Error: err.Error()})
			continue
		}

		result.ProcessedCount++
		fileProgress := float64(fileIndex+1) / float64(len(selectedFiles)) * 100
		s.progress.Update(ctx, expertID, map[string]interface{}{
			"processed_files":     result.ProcessedCount,
			"progress_percentage": fileProgress,
		})
	}

	result.SuccessRate = float64(result.ProcessedCount) / float64(result.TotalFiles) * 100
	log.WithFields(logger.Fields{
		"processed": result.ProcessedCount,
		"total":     result.TotalFiles,
		"failed":    len(result.FailedFiles),
	}).Info("File processing complete")

	switch {
	case result.ProcessedCount == result.TotalFiles:
		s.progress.MarkCompleted(ctx, expertID, domain.JSONMap{
			"processed_count": result.ProcessedCount,
			"total_files":     result.TotalFiles,
			"success_rate":    result.SuccessRate,
		})
	case result.ProcessedCount == 0:
		s.progress.MarkFailed(ctx, expertID, "All files failed to process", domain.JSONMap{
			"failed_files": failureList(result.FailedFiles),
		})
	default:
		// Partial success still completes the run; pollers learn which
		// files need attention from the details blob.
		s.progress.Update(ctx, expertID, map[string]interface{}{
			"status":              domain.ProgressStatusCompleted,
			"stage":               domain.StageComplete,
			"progress_percentage": 100.0,
			"failed_files":        len(result.FailedFiles),
			"details": domain.JSONMap{
				"partial_success": true,
				"failed_files":    failureList(result.FailedFiles),
			},
		})
	}

	return result, nil
}

// IngestDocument runs the pipeline for one document outside the queue.
// Outcomes match the queued path: same document status write-back, same
// vector layout, no progress tracking.
func (s *IngestService) IngestDocument(ctx context.Context, expertID, documentID string) error {
	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load expert: %w", err)
	}
	return s.processSingleFile(ctx, expertID, expert.AgentID, documentID, 0, 1)
}

// DeleteDocumentKnowledge removes a document's vectors and its database row.
func (s *IngestService) DeleteDocumentKnowledge(ctx context.Context, expertID, documentID string) error {
	expert, err := s.experts.GetByID(ctx, expertID)
	if err != nil {
		return fmt.Errorf("load expert: %w", err)
	}
	if err := s.vectors.DeleteDocument(ctx, expert.AgentID, documentID); err != nil {
		return fmt.Errorf("delete document vectors: %w", err)
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.S3Key != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, doc.S3Key); err != nil {
			s.log.WithError(err).WithField(logger.FieldFileID, documentID).Warn("Object storage delete failed")
		}
	}
	return s.documents.Delete(ctx, documentID)
}

// ensureProgress adopts the queued-stage record created at enqueue time, or
// creates a fresh one for direct runs.
func (s *IngestService) ensureProgress(ctx context.Context, expertID, agentID string, totalFiles int) error {
	_, err := s.progress.Create(ctx, expertID, agentID, totalFiles, "", nil)
	if errors.Is(err, ErrProgressExists) {
		_, err = s.progress.Update(ctx, expertID, map[string]interface{}{
			"total_files": totalFiles,
		})
	}
	return err
}

// processSingleFile runs one document through extract, embed, and store,
// writing the outcome back onto the document row.
func (s *IngestService) processSingleFile(ctx context.Context, expertID, agentID, fileID string, fileIndex, totalFiles int) error {
	doc, err := s.documents.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	text, err := s.extractText(ctx, doc)
	if err != nil {
		s.documents.UpdateProcessingResult(ctx, fileID, domain.DocumentStatusFailed, 0, err.Error())
		return err
	}

	s.progress.Update(ctx, expertID, map[string]interface{}{
		"stage": domain.StageTextExtraction,
		"details": domain.JSONMap{
			"filename":             doc.Name,
			"characters_extracted": len(text),
		},
	})

	sink := ProgressSinkFunc(func(batch, totalBatches, chunksDone, totalChunks int) {
		pct := (float64(fileIndex) + float64(chunksDone)/float64(totalChunks)) / float64(totalFiles) * 100
		s.progress.Update(ctx, expertID, map[string]interface{}{
			"stage":               domain.StageEmbedding,
			"current_batch":       batch,
			"total_batches":       totalBatches,
			"current_chunk":       chunksDone,
			"total_chunks":        totalChunks,
			"progress_percentage": pct,
			"details": domain.JSONMap{
				"filename": doc.Name,
				"batch":    fmt.Sprintf("%d/%d", batch, totalBatches),
				"chunks":   fmt.Sprintf("%d/%d", chunksDone, totalChunks),
			},
		})
	})

	processed, err := s.processor.ProcessDocument(ctx, text, fileID, doc.Name, expertID, sink)
	if err != nil {
		s.documents.UpdateProcessingResult(ctx, fileID, domain.DocumentStatusFailed, 0, err.Error())
		return fmt.Errorf("embedding generation failed: %w", err)
	}

	s.progress.Update(ctx, expertID, map[string]interface{}{
		"stage": domain.StageVectorStorage,
		"details": domain.JSONMap{
			"filename":        doc.Name,
			"chunks_to_store": len(processed.Chunks),
		},
	})

	stored, err := s.vectors.StoreDocumentChunks(ctx, agentID, processed.Chunks)
	if err != nil {
		msg := fmt.Sprintf("vector storage failed after %d/%d vectors: %v",
			stored.UpsertedCount, stored.TotalRequested, err)
		s.documents.UpdateProcessingResult(ctx, fileID, domain.DocumentStatusFailed, 0, msg)
		return errors.New(msg)
	}

	if err := s.documents.UpdateProcessingResult(ctx, fileID, domain.DocumentStatusCompleted, processed.ProcessedWordCount, ""); err != nil {
		return fmt.Errorf("record document result: %w", err)
	}

	s.log.WithFields(logger.Fields{
		logger.FieldFileID: fileID,
		"filename":         doc.Name,
		"chunks":           len(processed.Chunks),
		"vectors":          stored.UpsertedCount,
	}).Info("Document ingested")
	return nil
}

// extractText resolves a document's text: pre-extracted text when present,
// otherwise raw content from object storage with the database blob as
// fallback, run through the extractor.
func (s *IngestService) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	if doc.ExtractedText != "" {
		return doc.ExtractedText, nil
	}

	var raw []byte
	if doc.S3Key != "" && s.objects != nil {
		body, err := s.objects.Download(ctx, doc.S3Key)
		if err != nil {
			s.log.WithError(err).WithField("s3_key", doc.S3Key).Warn("Object storage download failed, trying database fallback")
		} else {
			raw, err = io.ReadAll(body)
			body.Close()
			if err != nil {
				s.log.WithError(err).WithField("s3_key", doc.S3Key).Warn("Object storage read failed, trying database fallback")
				raw = nil
			}
		}
	}
	if len(raw) == 0 {
		raw = doc.Content
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("no content available for %q, please re-upload", doc.Name)
	}

	extracted, err := s.extractor.Extract(raw, doc.ContentType, doc.Name)
	if err != nil {
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	return extracted.Text, nil
}

func failureList(failures []FileFailure) []interface{} {
	out := make([]interface{}, 0, len(failures))
	for _, f := range failures {
		out = append(out, map[string]interface{}{
			"file_id": f.FileID,
			"error":   f.Error,
		})
	}
	return out
}
