package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TaskStatus represents the lifecycle state of a queued processing task.
// Transitions: QUEUED -> PROCESSING -> {COMPLETED | FAILED | QUEUED (retry)};
// QUEUED -> CANCELLED via explicit cancel only.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskType is the closed set of task kinds the queue worker dispatches on.
// Adding a kind means extending the worker's switch; an unknown value is an
// immediate task failure, never a silent drop.
type TaskType string

const (
	TaskTypeFileProcessing TaskType = "file_processing"
	TaskTypeKnowledgeBase  TaskType = "knowledge_base_processing"
)

// JSONMap stores arbitrary structured data as a JSON column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// StringList stores a string slice as a JSON column.
type StringList []string

// Value implements driver.Valuer for database serialization.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database deserialization.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, l)
}

// ProcessingTask is one queued unit of ingestion work for an expert.
// QueuePosition is a computed 1-based rank over the QUEUED set ordered by
// (priority desc, created_at asc); nil once the task leaves that set. Rows
// are retained after terminal transitions for audit.
type ProcessingTask struct {
	ID       string   `gorm:"type:text;primaryKey" json:"id"`
	ExpertID string   `gorm:"type:text;not null;index" json:"expert_id"`
	AgentID  string   `gorm:"type:text;not null" json:"agent_id"`
	TaskType TaskType `gorm:"type:text;not null;default:file_processing" json:"task_type"`

	Status   TaskStatus `gorm:"type:text;not null;default:queued;index" json:"status"`
	Priority int        `gorm:"default:0" json:"priority"`

	QueuePosition *int `json:"queue_position,omitempty"`

	TaskData JSONMap `gorm:"type:text" json:"task_data,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int    `gorm:"default:0" json:"retry_count"`
	MaxRetries   int    `gorm:"default:3" json:"max_retries"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ProcessingTask.
func (ProcessingTask) TableName() string {
	return "processing_queue"
}

// SelectedFiles extracts the file ID list from the task payload.
func (t *ProcessingTask) SelectedFiles() []string {
	raw, ok := t.TaskData["selected_files"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		files := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				files = append(files, s)
			}
		}
		return files
	}
	return nil
}
