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

// ErrTaskNotCancellable is returned when cancellation is requested for a
// task that already left the QUEUED state.
var ErrTaskNotCancellable = errors.New("task is no longer queued")

// QueueConfig holds queue behavior parameters.
type QueueConfig struct {
	MaxRetries int
}

// QueueStatus is the aggregate snapshot served by the status endpoint.
type QueueStatus struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// QueueService manages the durable processing queue. Ordering is always
// (priority desc, created_at asc); queue positions are recomputed 1..n after
// every mutation so pollers see a dense, current ranking.
type QueueService struct {
	tasks *repository.TaskRepository
	cfg   QueueConfig
	log   *logger.Logger
}

// NewQueueService creates a new queue service.
func NewQueueService(tasks *repository.TaskRepository, cfg QueueConfig, log *logger.Logger) *QueueService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &QueueService{tasks: tasks, cfg: cfg, log: log}
}

// Enqueue adds a task to the queue and returns it with its assigned
// position.
func (s *QueueService) Enqueue(ctx context.Context, expertID, agentID string, taskType domain.TaskType, priority int, taskData domain.JSONMap) (*domain.ProcessingTask, error) {
	switch taskType {
	case domain.TaskTypeFileProcessing, domain.TaskTypeKnowledgeBase:
	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	task := &domain.ProcessingTask{
		ID:         uuid.New().String(),
		ExpertID:   expertID,
		AgentID:    agentID,
		TaskType:   taskType,
		Status:     domain.TaskStatusQueued,
		Priority:   priority,
		TaskData:   taskData,
		MaxRetries: s.cfg.MaxRetries,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}
	if err := s.tasks.RecomputePositions(ctx); err != nil {
		return nil, fmt.Errorf("recompute queue positions: %w", err)
	}

	// Reload to pick up the position assigned by the recompute.
	created, err := s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("reload enqueued task: %w", err)
	}
	s.log.WithFields(logger.Fields{
		logger.FieldTaskID:   created.ID,
		logger.FieldExpertID: expertID,
		"task_type":          string(taskType),
		"priority":           priority,
	}).Info("Task enqueued")
	return created, nil
}

// NextTask returns the head of the queue without claiming it, or nil when
// the queue is empty.
func (s *QueueService) NextTask(ctx context.Context) (*domain.ProcessingTask, error) {
	task, err := s.tasks.NextQueued(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek queue: %w", err)
	}
	return task, nil
}

// GetTask returns a task by ID, or nil when it does not exist.
func (s *QueueService) GetTask(ctx context.Context, taskID string) (*domain.ProcessingTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	return task, nil
}

// TaskForExpert returns the expert's QUEUED or PROCESSING task, or nil.
func (s *QueueService) TaskForExpert(ctx context.Context, expertID string) (*domain.ProcessingTask, error) {
	task, err := s.tasks.ActiveByExpert(ctx, expertID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expert task: %w", err)
	}
	return task, nil
}

// MarkProcessing claims a task for execution.
func (s *QueueService) MarkProcessing(ctx context.Context, task *domain.ProcessingTask) error {
	now := time.Now().UTC()
	task.Status = domain.TaskStatusProcessing
	task.StartedAt = &now
	if err := s.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("mark task processing: %w", err)
	}
	return s.tasks.RecomputePositions(ctx)
}

// MarkCompleted records a successful run.
func (s *QueueService) MarkCompleted(ctx context.Context, task *domain.ProcessingTask) error {
	now := time.Now().UTC()
	task.Status = domain.TaskStatusCompleted
	task.CompletedAt = &now
	task.ErrorMessage = ""
	if err := s.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("mark task completed: %w", err)
	}
	return s.tasks.RecomputePositions(ctx)
}

// MarkFailed records a failed run. The task is requeued until its retry
// budget is exhausted; a requeued task keeps its original created_at, so it
// re-ranks where it originally stood instead of moving to the back.
func (s *QueueService) MarkFailed(ctx context.Context, task *domain.ProcessingTask, errorMessage string) error {
	task.RetryCount++
	task.ErrorMessage = errorMessage

	if task.RetryCount >= task.MaxRetries {
		now := time.Now().UTC()
		task.Status = domain.TaskStatusFailed
		task.CompletedAt = &now
		s.log.WithFields(logger.Fields{
			logger.FieldTaskID: task.ID,
			"retry_count":      task.RetryCount,
		}).Error("Task failed permanently")
	} else {
		task.Status = domain.TaskStatusQueued
		task.StartedAt = nil
		s.log.WithFields(logger.Fields{
			logger.FieldTaskID: task.ID,
			"retry_count":      task.RetryCount,
			"max_retries":      task.MaxRetries,
		}).Warn("Task failed, requeued")
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return s.tasks.RecomputePositions(ctx)
}

// Cancel cancels a task that has not started yet. Tasks in any other state
// return ErrTaskNotCancellable; a missing task returns nil, false.
func (s *QueueService) Cancel(ctx context.Context, taskID string) (*domain.ProcessingTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task.Status != domain.TaskStatusQueued {
		return task, ErrTaskNotCancellable
	}

	now := time.Now().UTC()
	task.Status = domain.TaskStatusCancelled
	task.CompletedAt = &now
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}
	if err := s.tasks.RecomputePositions(ctx); err != nil {
		return nil, fmt.Errorf("recompute queue positions: %w", err)
	}
	s.log.WithField(logger.FieldTaskID, taskID).Info("Task cancelled")
	return task, nil
}

// Status returns aggregate queue counts.
func (s *QueueService) Status(ctx context.Context) (*QueueStatus, error) {
	counts, err := s.tasks.CountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue status: %w", err)
	}
	status := &QueueStatus{
		Queued:     counts[domain.TaskStatusQueued],
		Processing: counts[domain.TaskStatusProcessing],
		Completed:  counts[domain.TaskStatusCompleted],
		Failed:     counts[domain.TaskStatusFailed],
		Cancelled:  counts[domain.TaskStatusCancelled],
	}
	status.Total = status.Queued + status.Processing + status.Completed + status.Failed + status.Cancelled
	return status, nil
}
