package domain

import "time"

// Progress status values.
const (
	ProgressStatusPending    = "pending"
	ProgressStatusInProgress = "in_progress"
	ProgressStatusCompleted  = "completed"
	ProgressStatusFailed     = "failed"
)

// Pipeline stage labels surfaced to polling clients.
const (
	StageQueued         = "queued"
	StageFileProcessing = "file_processing"
	StageTextExtraction = "text_extraction"
	StageEmbedding      = "embedding"
	StageVectorStorage  = "vector_storage"
	StageComplete       = "complete"
	StageFailed         = "failed"
)

// ProcessingProgress tracks one expert's active ingestion run. At most one
// record per expert is active at a time; callers delete a consumed record
// before starting the next run. ProgressPercentage never regresses while the
// record lives and reaches exactly 100.0 on completion.
type ProcessingProgress struct {
	ID       string `gorm:"type:text;primaryKey" json:"id"`
	ExpertID string `gorm:"type:text;not null;index" json:"expert_id"`
	AgentID  string `gorm:"type:text;not null" json:"agent_id"`

	Stage  string `gorm:"type:text;not null" json:"stage"`
	Status string `gorm:"type:text;not null;default:pending" json:"status"`

	// Mirrored queue linkage; QueuePosition is refreshed from the live
	// queue row on read while the record is still in the queued stage.
	QueuePosition *int   `json:"queue_position,omitempty"`
	TaskID        string `gorm:"type:text" json:"task_id,omitempty"`

	CurrentFile      string `gorm:"type:text" json:"current_file,omitempty"`
	CurrentFileIndex int    `gorm:"default:0" json:"current_file_index"`
	TotalFiles       int    `gorm:"default:0" json:"total_files"`

	CurrentBatch int `gorm:"default:0" json:"current_batch"`
	TotalBatches int `gorm:"default:0" json:"total_batches"`
	CurrentChunk int `gorm:"default:0" json:"current_chunk"`
	TotalChunks  int `gorm:"default:0" json:"total_chunks"`

	ProcessedFiles     int     `gorm:"default:0" json:"processed_files"`
	FailedFiles        int     `gorm:"default:0" json:"failed_files"`
	ProgressPercentage float64 `gorm:"default:0" json:"progress_percentage"`

	Details      JSONMap `gorm:"type:text" json:"details,omitempty"`
	ErrorMessage string  `gorm:"type:text" json:"error_message,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Metadata JSONMap `gorm:"type:text;column:processing_metadata" json:"processing_metadata,omitempty"`
}

// TableName returns the database table name for ProcessingProgress.
func (ProcessingProgress) TableName() string {
	return "processing_progress"
}

// MarkCompleted sets the terminal success state.
func (p *ProcessingProgress) MarkCompleted(now time.Time) {
	p.Status = ProgressStatusCompleted
	p.Stage = StageComplete
	p.ProgressPercentage = 100.0
	p.CompletedAt = &now
}

// MarkFailed sets the terminal failure state with a human-readable reason.
func (p *ProcessingProgress) MarkFailed(errorMessage string, now time.Time) {
	p.Status = ProgressStatusFailed
	p.Stage = StageFailed
	p.ErrorMessage = errorMessage
	p.CompletedAt = &now
}

// Active reports whether the record still describes an in-flight run.
func (p *ProcessingProgress) Active() bool {
	return p.Status == ProgressStatusPending || p.Status == ProgressStatusInProgress
}
