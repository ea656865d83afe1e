package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/logger"
)

// WorkerConfig holds queue worker parameters.
type WorkerConfig struct {
	PollInterval time.Duration
}

// WorkerStatus is the worker snapshot served by the status endpoint.
type WorkerStatus struct {
	IsRunning     bool   `json:"is_running"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
	PollInterval  string `json:"poll_interval"`
}

// QueueWorker drains the processing queue in the background. A single
// worker runs tasks one at a time in dequeue order.
type QueueWorker struct {
	queue  *QueueService
	ingest *IngestService
	cfg    WorkerConfig
	log    *logger.Logger

	mu            sync.Mutex
	running       bool
	currentTaskID string
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewQueueWorker creates a new worker.
func NewQueueWorker(queue *QueueService, ingest *IngestService, cfg WorkerConfig, log *logger.Logger) *QueueWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &QueueWorker{queue: queue, ingest: ingest, cfg: cfg, log: log}
}

// Start launches the polling loop. Starting a running worker is a no-op.
func (w *QueueWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.log.Warn("Queue worker already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
	w.log.Info("Queue worker started")
}

// Stop halts the polling loop and waits for the in-flight task to finish
// its current step.
func (w *QueueWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.log.Info("Queue worker stopped")
}

// Status reports the worker's current state.
func (w *QueueWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{
		IsRunning:     w.running,
		CurrentTaskID: w.currentTaskID,
		PollInterval:  w.cfg.PollInterval.String(),
	}
}

func (w *QueueWorker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNext(ctx)
		}
	}
}

// processNext claims and runs at most one task. A panic in task handling is
// converted into a task failure so the loop survives.
func (w *QueueWorker) processNext(ctx context.Context) {
	task, err := w.queue.NextTask(ctx)
	if err != nil {
		w.log.WithError(err).Error("Queue poll failed")
		return
	}
	if task == nil {
		return
	}

	w.setCurrentTask(task.ID)
	defer w.setCurrentTask("")

	log := w.log.WithFields(logger.Fields{
		logger.FieldTaskID:   task.ID,
		logger.FieldExpertID: task.ExpertID,
		"task_type":          string(task.TaskType),
	})
	log.Info("Processing task")

	if err := w.queue.MarkProcessing(ctx, task); err != nil {
		log.WithError(err).Error("Failed to claim task")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Task handler panicked")
			w.queue.MarkFailed(ctx, task, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch task.TaskType {
	case domain.TaskTypeFileProcessing, domain.TaskTypeKnowledgeBase:
		w.runFileTask(ctx, task, log)
	default:
		log.Error("Unknown task type")
		w.queue.MarkFailed(ctx, task, fmt.Sprintf("unknown task type: %s", task.TaskType))
	}
}

func (w *QueueWorker) runFileTask(ctx context.Context, task *domain.ProcessingTask, log *logger.Logger) {
	files := task.SelectedFiles()
	if len(files) == 0 {
		log.Warn("No files to process")
		w.queue.MarkCompleted(ctx, task)
		return
	}

	// Per-file failures, credential failures included, are contained by the
	// pipeline and recorded on the documents and the progress record. An
	// error here means the run could not start at all.
	result, err := w.ingest.ProcessExpertFiles(ctx, task.ExpertID, task.AgentID, files)
	if err != nil {
		w.queue.MarkFailed(ctx, task, err.Error())
		return
	}

	log.WithFields(logger.Fields{
		"processed": result.ProcessedCount,
		"total":     result.TotalFiles,
	}).Info("Task completed")
	w.queue.MarkCompleted(ctx, task)
}

func (w *QueueWorker) setCurrentTask(id string) {
	w.mu.Lock()
	w.currentTaskID = id
	w.mu.Unlock()
}
