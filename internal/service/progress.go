package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
	"github.com/sahil/voxpert/internal/repository"
)

// ErrProgressExists is returned when a run is started for an expert that
// already has an active progress record.
var ErrProgressExists = errors.New("active progress record already exists")

// ProgressService owns the per-expert progress records polled by clients.
// Updates are soft: reporting progress for a record that was already deleted
// is not an error, so pipeline code never fails on a status write.
type ProgressService struct {
	progress *repository.ProgressRepository
	tasks    *repository.TaskRepository
	log      *logger.Logger
}

// NewProgressService creates a new progress service.
func NewProgressService(progress *repository.ProgressRepository, tasks *repository.TaskRepository, log *logger.Logger) *ProgressService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ProgressService{progress: progress, tasks: tasks, log: log}
}

// Create starts a fresh progress record for the expert. A leftover terminal
// record from a previous run is replaced; an active one is an error so two
// runs cannot interleave their status writes.
func (s *ProgressService) Create(ctx context.Context, expertID, agentID string, totalFiles int, taskID string, queuePosition *int) (*domain.ProcessingProgress, error) {
	existing, err := s.progress.GetByExpertID(ctx, expertID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing progress: %w", err)
	}
	if existing != nil {
		if existing.Active() {
			return nil, ErrProgressExists
		}
		if _, err := s.progress.DeleteByExpertID(ctx, expertID); err != nil {
			return nil, fmt.Errorf("replace stale progress: %w", err)
		}
	}

	stage := domain.StageFileProcessing
	if taskID != "" {
		stage = domain.StageQueued
	}
	record := &domain.ProcessingProgress{
		ID:            uuid.New().String(),
		ExpertID:      expertID,
		AgentID:       agentID,
		Stage:         stage,
		Status:        domain.ProgressStatusPending,
		TaskID:        taskID,
		QueuePosition: queuePosition,
		TotalFiles:    totalFiles,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.progress.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create progress record: %w", err)
	}
	return record, nil
}

// Update merges the given columns into the expert's record. Returns false
// without error when no record exists anymore. ProgressPercentage never
// regresses: a lower value than the stored one is clamped to the stored one.
func (s *ProgressService) Update(ctx context.Context, expertID string, fields map[string]interface{}) (bool, error) {
	if raw, ok := fields["progress_percentage"]; ok {
		current, err := s.progress.GetByExpertID(ctx, expertID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load progress: %w", err)
		}
		if pct, isFloat := raw.(float64); isFloat && pct < current.ProgressPercentage {
			fields["progress_percentage"] = current.ProgressPercentage
		}
	}
	fields["updated_at"] = time.Now().UTC()

	affected, err := s.progress.Updates(ctx, expertID, fields)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}
	if affected == 0 {
		s.log.WithField(logger.FieldExpertID, expertID).Debug("Progress update skipped, no record")
		return false, nil
	}
	return true, nil
}

// SetStage is a convenience wrapper for the common stage transition update.
func (s *ProgressService) SetStage(ctx context.Context, expertID, stage, status string) (bool, error) {
	return s.Update(ctx, expertID, map[string]interface{}{
		"stage":  stage,
		"status": status,
	})
}

// MarkCompleted moves the record to its terminal success state. Metadata,
// when non-nil, is stored as the run summary.
func (s *ProgressService) MarkCompleted(ctx context.Context, expertID string, metadata domain.JSONMap) (bool, error) {
	fields := map[string]interface{}{
		"status":              domain.ProgressStatusCompleted,
		"stage":               domain.StageComplete,
		"progress_percentage": 100.0,
		"completed_at":        time.Now().UTC(),
	}
	if metadata != nil {
		fields["processing_metadata"] = metadata
	}
	return s.Update(ctx, expertID, fields)
}

// MarkFailed moves the record to its terminal failure state.
func (s *ProgressService) MarkFailed(ctx context.Context, expertID, errorMessage string, metadata domain.JSONMap) (bool, error) {
	fields := map[string]interface{}{
		"status":        domain.ProgressStatusFailed,
		"stage":         domain.StageFailed,
		"error_message": errorMessage,
		"completed_at":  time.Now().UTC(),
	}
	if metadata != nil {
		fields["processing_metadata"] = metadata
	}
	return s.Update(ctx, expertID, fields)
}

// Delete removes the expert's record. Deleting an absent record reports
// false, not an error, so the endpoint is idempotent.
func (s *ProgressService) Delete(ctx context.Context, expertID string) (bool, error) {
	affected, err := s.progress.DeleteByExpertID(ctx, expertID)
	if err != nil {
		return false, fmt.Errorf("delete progress: %w", err)
	}
	return affected > 0, nil
}

// Get returns the expert's progress record, or nil when none exists. While
// the record is still queued and linked to a task, the mirrored queue
// position is refreshed from the live queue row so pollers see movement
// without the worker touching the progress table.
func (s *ProgressService) Get(ctx context.Context, expertID string) (*domain.ProcessingProgress, error) {
	record, err := s.progress.GetByExpertID(ctx, expertID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	if record.Stage == domain.StageQueued && record.TaskID != "" {
		task, err := s.tasks.GetByID(ctx, record.TaskID)
		if err == nil && task.Status == domain.TaskStatusQueued {
			record.QueuePosition = task.QueuePosition
		}
	}
	return record, nil
}
